package model

import (
	"fmt"

	"github.com/google/uuid"
)

// EventKey identifies an event by the message it tags. Message IDs are only unique within
// a conversation, so the conversation ID is part of the key.
type EventKey struct {
	ConversationID string
	MessageID      string
}

// String returns the key as "conversation_id/message_id".
func (k EventKey) String() string {
	return k.ConversationID + "/" + k.MessageID
}

// Event is a message tagged with an event type. Later stages attach an explanation,
// property values, a behavior pattern and a judge score to the same event.
type Event struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	ConversationID  string            `json:"conversation_id"`
	EventType       *EventType        `json:"-"`
	Message         Message           `json:"message"`
	PropertyValues  map[string]string `json:"property_values,omitempty"`
	Explanation     string            `json:"explanation,omitempty"`
	BehaviorPattern string            `json:"behavior_pattern,omitempty"`
	JudgeScore      *float64          `json:"judge_score,omitempty"`
}

// NewEvent creates an event for msg in conv tagged with eventType.
func NewEvent(conv *Conversation, msg Message, eventType *EventType) *Event {
	return &Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		UserID:         conv.UserID,
		ConversationID: conv.ID,
		EventType:      eventType,
		Message:        msg,
		PropertyValues: make(map[string]string),
	}
}

// Key returns the event's index key.
func (e *Event) Key() EventKey {
	return EventKey{ConversationID: e.ConversationID, MessageID: e.Message.ID}
}

// EventTypeName returns the name of the assigned event type.
func (e *Event) EventTypeName() string {
	if e.EventType == nil {
		return ""
	}
	return e.EventType.Name
}

// EventIndex owns the events of a run, keyed by the message they tag. Every write after
// stage one goes through an explicit setter.
type EventIndex struct {
	order []EventKey
	byKey map[EventKey]*Event
}

// NewEventIndex creates an empty index.
func NewEventIndex() *EventIndex {
	return &EventIndex{byKey: make(map[EventKey]*Event)}
}

// Put stores ev. An event already indexed for the same message is replaced in place so a
// message never carries two events.
func (x *EventIndex) Put(ev *Event) {
	key := ev.Key()
	if _, ok := x.byKey[key]; !ok {
		x.order = append(x.order, key)
	}
	x.byKey[key] = ev
}

// Get returns the event for key.
func (x *EventIndex) Get(key EventKey) (*Event, bool) {
	ev, ok := x.byKey[key]
	return ev, ok
}

// Len returns the number of indexed events.
func (x *EventIndex) Len() int { return len(x.order) }

// Events returns all events in insertion order.
func (x *EventIndex) Events() []*Event {
	out := make([]*Event, 0, len(x.order))
	for _, key := range x.order {
		out = append(out, x.byKey[key])
	}
	return out
}

// ByConversation returns the events of one conversation in message order.
func (x *EventIndex) ByConversation(conversationID string) []*Event {
	var out []*Event
	for _, key := range x.order {
		if key.ConversationID == conversationID {
			out = append(out, x.byKey[key])
		}
	}
	return out
}

// ByEventType returns the events tagged with the named event type.
func (x *EventIndex) ByEventType(name string) []*Event {
	var out []*Event
	for _, key := range x.order {
		if ev := x.byKey[key]; ev.EventTypeName() == name {
			out = append(out, ev)
		}
	}
	return out
}

// SetExplanation attaches an explanation to the event for key.
func (x *EventIndex) SetExplanation(key EventKey, explanation string) error {
	ev, ok := x.byKey[key]
	if !ok {
		return fmt.Errorf("no event for %s", key)
	}
	ev.Explanation = explanation
	return nil
}

// SetPropertyValue writes one property value. Values of other properties are untouched.
func (x *EventIndex) SetPropertyValue(key EventKey, property, value string) error {
	ev, ok := x.byKey[key]
	if !ok {
		return fmt.Errorf("no event for %s", key)
	}
	if _, ok := ev.EventType.Properties.Get(property); !ok {
		return fmt.Errorf("event type %q has no property %q", ev.EventTypeName(), property)
	}
	if ev.PropertyValues == nil {
		ev.PropertyValues = make(map[string]string)
	}
	ev.PropertyValues[property] = value
	return nil
}

// SetBehavior attaches a behavior pattern name to the event for key.
func (x *EventIndex) SetBehavior(key EventKey, pattern string) error {
	ev, ok := x.byKey[key]
	if !ok {
		return fmt.Errorf("no event for %s", key)
	}
	ev.BehaviorPattern = pattern
	return nil
}

// SetJudgeScore attaches score to every event of a conversation.
func (x *EventIndex) SetJudgeScore(conversationID string, score float64) {
	for _, ev := range x.ByConversation(conversationID) {
		s := score
		ev.JudgeScore = &s
	}
}
