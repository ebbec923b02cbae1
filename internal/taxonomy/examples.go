package taxonomy

import "github.com/capitalize-ai/conversation-analytics/internal/model"

type exampleEventType struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
}

type eventTypeExample struct {
	Assistant  map[string]string  `json:"assistant"`
	EventTypes []exampleEventType `json:"event_types"`
}

func users(names ...string) []exampleEventType      { return withRole(model.RoleUser, names) }
func assistants(names ...string) []exampleEventType { return withRole(model.RoleAssistant, names) }

func withRole(role model.Role, names []string) []exampleEventType {
	out := make([]exampleEventType, len(names))
	for i, n := range names {
		out[i] = exampleEventType{Name: n, Role: role}
	}
	return out
}

// Complete taxonomies for unrelated assistants, shown to the model as a granularity guide.
var eventTypeExamples = []eventTypeExample{
	{
		Assistant: map[string]string{"name": "Mental Health Companion"},
		EventTypes: append(users(
			"Emotional Disclosure", "Crisis Disclosure", "Emotional Withdrawal", "Express Gratitude",
			"Narrative Disclosure", "Personal Insight", "Seek Clarification", "Self-Exploration",
			"Small Talk", "Support Request", "Therapeutic Resistance",
		), assistants(
			"Educational Guidance", "Positive Affirmation", "Request Deflection", "Resource Recommendation",
			"Small Talk", "Therapeutic Intervention", "Therapeutic Misalignment",
		)...),
	},
	{
		Assistant: map[string]string{"name": "Tax Advisor"},
		EventTypes: append(users(
			"Deduction Inquiry", "Estimated Tax Inquiry", "Filing Status Request", "Income Reporting Inquiry",
			"Seek Clarification", "Support Request", "Tax Concept Inquiry", "Tax Credit Inquiry",
			"Filing Status Update",
		), assistants(
			"Deduction Confirmation", "Estimated Tax Guidance", "Greeting", "Request Deflection",
			"Tax Concept Explanation", "Tax Credit Confirmation",
		)...),
	},
}

type propertyExample struct {
	Assistant       map[string]string     `json:"assistant"`
	EventType       exampleEventType      `json:"event_type"`
	EventProperties []model.EventProperty `json:"event_properties"`
}

var propertyExamples = []propertyExample{
	{
		Assistant: map[string]string{"name": "Mental Health Companion"},
		EventType: exampleEventType{Name: "Emotional Disclosure", Role: model.RoleUser},
		EventProperties: []model.EventProperty{{
			Name:       "Emotion",
			Definition: "The emotion that the user is expressing.",
			Choices: model.ChoiceSet{
				"Anger/Frustration",
				"Anxiety/Fear/Panic",
				"Confusion",
				"Guilt/Self-Blame",
				"Joy/Happiness",
				"Isolation/Loneliness",
				"Sadness/Depression/Grief",
				"Shame/Humiliation",
			},
		}},
	},
}

type judgeCriteriaExample struct {
	Assistant model.Assistant        `json:"assistant"`
	Response  model.LLMJudgeCriteria `json:"response"`
}

var judgeCriteriaExamples = []judgeCriteriaExample{
	{
		Assistant: model.Assistant{
			Name:        "Mental Health Companion",
			Description: "Your compassionate companion, here to provide a listening ear and support as you navigate life's challenges. Whether you're seeking a safe space to share your feelings or guidance on personal goals, I'm dedicated to helping you find clarity and comfort.",
		},
		Response: model.LLMJudgeCriteria{
			PrimaryGoals: []string{
				"Demonstrate empathetic listening and genuine compassion",
				"Correctly utilize therapeutic techniques to help the user explore their feelings, encourage further sharing, and gain personal insights",
				"Maintain a safe and non-judgmental space that encourages open sharing and emotional security",
			},
			SecondaryGoals: []string{
				"Offer tailored, contextually relevant responses based on the user's unique experiences and expressed needs",
				"Balance a warm and compassionate tone with clear guidance and, when necessary, appropriate disclaimers",
			},
			TertiaryGoals: []string{
				"Ensure consistency in tone, language, and messaging throughout the conversation",
				"Adapt responses flexibly to match the user's emotional state and evolving context",
				"Communicate clearly and simply, avoiding overly technical terms or ambiguous language",
			},
			Dealbreakers: []string{
				"Using insensitive, dismissive, or offensive language that invalidates the user's feelings",
				"Providing harmful, dangerous, or inappropriate advice that could exacerbate the user's distress",
				"Offering overly generic or repetitive responses that make the user feel unheard or misunderstood",
				"Assuming the user's situation or blindly agreeing to their thinking",
			},
		},
	},
}
