package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceSetUnion(t *testing.T) {
	tests := []struct {
		name   string
		start  []string
		add    []string
		expect ChoiceSet
	}{
		{"empty", nil, []string{"a", "b"}, ChoiceSet{"a", "b"}},
		{"overlap", []string{"a", "b"}, []string{"b", "c"}, ChoiceSet{"a", "b", "c"}},
		{"duplicates in input", nil, []string{"x", "x", "y"}, ChoiceSet{"x", "y"}},
		{"nothing new", []string{"a"}, []string{"a"}, ChoiceSet{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewChoiceSet(tt.start...).Union(tt.add...)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestPropertySetMergeUnionsChoices(t *testing.T) {
	set := NewPropertySet(EventProperty{Name: "Emotion", Definition: "first", Choices: ChoiceSet{"Joy", "Anger"}})

	prop, added := set.Merge(EventProperty{Name: "Emotion", Definition: "second", Choices: ChoiceSet{"Anger", "Fear"}})
	require.False(t, added)
	assert.Equal(t, "first", prop.Definition)
	assert.Equal(t, ChoiceSet{"Joy", "Anger", "Fear"}, prop.Choices)

	_, added = set.Merge(EventProperty{Name: "Topic", Choices: ChoiceSet{"Tax"}})
	require.True(t, added)
	assert.Equal(t, []string{"Emotion", "Topic"}, set.Names())
}

func TestEventTypeSetReconcileKeepsExisting(t *testing.T) {
	set := NewEventTypeSet()
	original := NewEventType("Support Request", "asks for help", RoleUser)
	original.Properties.Merge(EventProperty{Name: "Urgency", Choices: ChoiceSet{"High"}})
	set.Reconcile(original)

	got, added := set.Reconcile(NewEventType("Support Request", "different wording", RoleUser))
	require.False(t, added)
	assert.Same(t, original, got)
	assert.Equal(t, 1, got.Properties.Len())
	assert.Equal(t, 1, set.Len())
}

func TestEventTypeSetSortedAndForRole(t *testing.T) {
	set := NewEventTypeSet(
		NewEventType("Greeting", "", RoleUser),
		NewEventType("Answer", "", RoleAssistant),
		NewEventType("Ask", "", RoleUser),
	)

	var names []string
	for _, et := range set.Sorted() {
		names = append(names, et.Name)
	}
	assert.Equal(t, []string{"Answer", "Ask", "Greeting"}, names)

	users := set.ForRole(RoleUser)
	require.Len(t, users, 2)
	assert.Equal(t, "Greeting", users[0].Name)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Assistant ")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	_, err = ParseRole("system")
	assert.Error(t, err)
}
