package model

import (
	"sort"
)

// Assistant is the free-text identity that conditions every prompt.
type Assistant struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LLMJudgeCriteria holds the goals an LLM judge uses to score conversations.
type LLMJudgeCriteria struct {
	PrimaryGoals   []string `json:"primary_goals"`
	SecondaryGoals []string `json:"secondary_goals"`
	TertiaryGoals  []string `json:"tertiary_goals"`
	Dealbreakers   []string `json:"dealbreakers"`
}

// ChoiceSet is an ordered, duplicate-free list of property values.
type ChoiceSet []string

// NewChoiceSet builds a ChoiceSet, dropping duplicates and keeping first occurrence order.
func NewChoiceSet(values ...string) ChoiceSet {
	var s ChoiceSet
	return s.Union(values...)
}

// Contains reports whether v is in the set.
func (s ChoiceSet) Contains(v string) bool {
	for _, c := range s {
		if c == v {
			return true
		}
	}
	return false
}

// Union returns the set extended with every value not already present.
func (s ChoiceSet) Union(values ...string) ChoiceSet {
	out := append(ChoiceSet(nil), s...)
	for _, v := range values {
		if !out.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// EventProperty is an enumerated attribute attached to an event type. Identity is the name.
type EventProperty struct {
	Name       string    `json:"name"`
	Definition string    `json:"definition"`
	Choices    ChoiceSet `json:"values"`
}

// Key returns the identity key used for set membership.
func (p EventProperty) Key() string { return p.Name }

// PropertySet holds the properties of one event type keyed by name, in insertion order.
type PropertySet struct {
	order  []string
	byName map[string]*EventProperty
}

// NewPropertySet creates a property set, merging properties that share a name.
func NewPropertySet(props ...EventProperty) *PropertySet {
	s := &PropertySet{byName: make(map[string]*EventProperty)}
	for _, p := range props {
		s.Merge(p)
	}
	return s
}

// Merge inserts p when its name is new. When the name exists, the existing property is kept
// and its choices are extended by set union. The returned bool is true for a new entry.
func (s *PropertySet) Merge(p EventProperty) (*EventProperty, bool) {
	if s.byName == nil {
		s.byName = make(map[string]*EventProperty)
	}
	if existing, ok := s.byName[p.Key()]; ok {
		existing.Choices = existing.Choices.Union(p.Choices...)
		return existing, false
	}
	prop := &EventProperty{
		Name:       p.Name,
		Definition: p.Definition,
		Choices:    NewChoiceSet(p.Choices...),
	}
	s.byName[prop.Key()] = prop
	s.order = append(s.order, prop.Key())
	return prop, true
}

// Get returns the property with the given name.
func (s *PropertySet) Get(name string) (*EventProperty, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.byName[name]
	return p, ok
}

// List returns the properties in insertion order.
func (s *PropertySet) List() []*EventProperty {
	if s == nil {
		return nil
	}
	out := make([]*EventProperty, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Names returns the property names in insertion order.
func (s *PropertySet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Len returns the number of properties.
func (s *PropertySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// EventType is a taxonomy entry. Identity is the name: two event types with the same name
// are the same entry regardless of definition, which is what lets batches converge.
type EventType struct {
	Name       string
	Definition string
	Role       Role
	Properties *PropertySet
}

// NewEventType creates an event type with no properties.
func NewEventType(name, definition string, role Role) *EventType {
	return &EventType{
		Name:       name,
		Definition: definition,
		Role:       role,
		Properties: NewPropertySet(),
	}
}

// Key returns the identity key used for set membership.
func (e *EventType) Key() string { return e.Name }

// PromptEventType is the representation of an event type inlined into prompts.
type PromptEventType struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Role       Role   `json:"role,omitempty"`
}

// PromptFormat returns the prompt representation of the event type.
func (e *EventType) PromptFormat() PromptEventType {
	return PromptEventType{Name: e.Name, Definition: e.Definition, Role: e.Role}
}

// EventTypeSet holds a taxonomy keyed by event type name, in insertion order.
type EventTypeSet struct {
	order  []string
	byName map[string]*EventType
}

// NewEventTypeSet creates a set from the given event types, keeping the first entry per name.
func NewEventTypeSet(types ...*EventType) *EventTypeSet {
	s := &EventTypeSet{byName: make(map[string]*EventType)}
	for _, et := range types {
		s.Reconcile(et)
	}
	return s
}

// Reconcile adds candidate when its name is new. When the name already exists the existing
// entry, with its accumulated properties, is returned and candidate is discarded.
func (s *EventTypeSet) Reconcile(candidate *EventType) (*EventType, bool) {
	if s.byName == nil {
		s.byName = make(map[string]*EventType)
	}
	if existing, ok := s.byName[candidate.Key()]; ok {
		return existing, false
	}
	if candidate.Properties == nil {
		candidate.Properties = NewPropertySet()
	}
	s.byName[candidate.Key()] = candidate
	s.order = append(s.order, candidate.Key())
	return candidate, true
}

// Get returns the event type with the given name.
func (s *EventTypeSet) Get(name string) (*EventType, bool) {
	if s == nil {
		return nil, false
	}
	et, ok := s.byName[name]
	return et, ok
}

// List returns the event types in insertion order.
func (s *EventTypeSet) List() []*EventType {
	if s == nil {
		return nil
	}
	out := make([]*EventType, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Sorted returns the event types ordered by role, then name.
func (s *EventTypeSet) Sorted() []*EventType {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ForRole returns the event types bound to role, in insertion order.
func (s *EventTypeSet) ForRole(role Role) []*EventType {
	var out []*EventType
	for _, et := range s.List() {
		if et.Role == role {
			out = append(out, et)
		}
	}
	return out
}

// Names returns the event type names in insertion order.
func (s *EventTypeSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Len returns the number of event types.
func (s *EventTypeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// BehaviorPattern is a cluster of similar event occurrences within one event type.
type BehaviorPattern struct {
	EventType   string `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DataSchema is the persisted fixed point of taxonomy generation.
type DataSchema struct {
	Assistant        Assistant
	LLMJudgeCriteria LLMJudgeCriteria
	EventTypes       *EventTypeSet
}
