package service

import (
	"sync"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/pipeline"
)

// Progress tracks a run for the ops surface. It is written by the orchestrating goroutine
// and read concurrently by HTTP handlers.
type Progress struct {
	mu        sync.RWMutex
	command   string
	loaded    bool
	stage     string
	startedAt time.Time
	stages    []pipeline.StageReport
	done      bool
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Command   string                 `json:"command"`
	Loaded    bool                   `json:"loaded"`
	Stage     string                 `json:"stage,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	Stages    []pipeline.StageReport `json:"stages"`
	Done      bool                   `json:"done"`
}

// NewProgress creates progress for a run of command.
func NewProgress(command string) *Progress {
	return &Progress{command: command, startedAt: time.Now().UTC()}
}

// MarkLoaded records that inputs were loaded and the run can start.
func (p *Progress) MarkLoaded() {
	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
}

// Loaded reports whether inputs were loaded.
func (p *Progress) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

func (p *Progress) startStage(name string) {
	p.mu.Lock()
	p.stage = name
	p.mu.Unlock()
}

func (p *Progress) finishStage(r pipeline.StageReport) {
	p.mu.Lock()
	p.stage = ""
	p.stages = append(p.stages, r)
	p.mu.Unlock()
}

// MarkDone records the end of the run.
func (p *Progress) MarkDone() {
	p.mu.Lock()
	p.done = true
	p.stage = ""
	p.mu.Unlock()
}

// Snapshot returns a copy safe to serialize.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProgressSnapshot{
		Command:   p.command,
		Loaded:    p.loaded,
		Stage:     p.stage,
		StartedAt: p.startedAt,
		Stages:    append([]pipeline.StageReport(nil), p.stages...),
		Done:      p.done,
	}
}
