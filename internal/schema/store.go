// Package schema persists a DataSchema as a YAML document.
package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

type document struct {
	Assistant        assistantDoc   `yaml:"assistant"`
	LLMJudgeCriteria criteriaDoc    `yaml:"llm_judge_criteria"`
	EventTypes       []eventTypeDoc `yaml:"event_types"`
}

type assistantDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type criteriaDoc struct {
	PrimaryGoals   []string `yaml:"primary_goals"`
	SecondaryGoals []string `yaml:"secondary_goals"`
	TertiaryGoals  []string `yaml:"tertiary_goals"`
	Dealbreakers   []string `yaml:"dealbreakers"`
}

type eventTypeDoc struct {
	Name       string       `yaml:"name"`
	Definition string       `yaml:"definition"`
	Role       string       `yaml:"role"`
	Properties propertyList `yaml:"properties,omitempty"`
}

type propertyDoc struct {
	Definition string `yaml:"definition,omitempty"`
	// Description is the key older documents used for the definition.
	Description string   `yaml:"description,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
}

type namedProperty struct {
	Name string
	Doc  propertyDoc
}

// propertyList is a YAML mapping from property name to property, kept in document order.
type propertyList []namedProperty

// MarshalYAML writes the properties as a mapping in list order.
func (l propertyList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range l {
		var value yaml.Node
		if err := value.Encode(p.Doc); err != nil {
			return nil, err
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name}
		node.Content = append(node.Content, key, &value)
	}
	return node, nil
}

// UnmarshalYAML reads a property mapping, keeping document order.
func (l *propertyList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var doc propertyDoc
		if err := value.Content[i+1].Decode(&doc); err != nil {
			return err
		}
		*l = append(*l, namedProperty{Name: value.Content[i].Value, Doc: doc})
	}
	return nil
}

// Encode writes schema as YAML. Event types are written sorted by role, then name.
func Encode(w io.Writer, schema *model.DataSchema) error {
	doc := document{
		Assistant: assistantDoc{Name: schema.Assistant.Name, Description: schema.Assistant.Description},
		LLMJudgeCriteria: criteriaDoc{
			PrimaryGoals:   schema.LLMJudgeCriteria.PrimaryGoals,
			SecondaryGoals: schema.LLMJudgeCriteria.SecondaryGoals,
			TertiaryGoals:  schema.LLMJudgeCriteria.TertiaryGoals,
			Dealbreakers:   schema.LLMJudgeCriteria.Dealbreakers,
		},
		EventTypes: []eventTypeDoc{},
	}
	for _, et := range schema.EventTypes.Sorted() {
		etDoc := eventTypeDoc{Name: et.Name, Definition: et.Definition, Role: string(et.Role)}
		for _, p := range et.Properties.List() {
			etDoc.Properties = append(etDoc.Properties, namedProperty{
				Name: p.Name,
				Doc:  propertyDoc{Definition: p.Definition, Choices: p.Choices},
			})
		}
		doc.EventTypes = append(doc.EventTypes, etDoc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return enc.Close()
}

// Decode reads a schema document.
func Decode(r io.Reader) (*model.DataSchema, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema document is empty")
		}
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	schema := &model.DataSchema{
		Assistant: model.Assistant{Name: doc.Assistant.Name, Description: doc.Assistant.Description},
		LLMJudgeCriteria: model.LLMJudgeCriteria{
			PrimaryGoals:   doc.LLMJudgeCriteria.PrimaryGoals,
			SecondaryGoals: doc.LLMJudgeCriteria.SecondaryGoals,
			TertiaryGoals:  doc.LLMJudgeCriteria.TertiaryGoals,
			Dealbreakers:   doc.LLMJudgeCriteria.Dealbreakers,
		},
		EventTypes: model.NewEventTypeSet(),
	}

	for i, etDoc := range doc.EventTypes {
		if etDoc.Name == "" {
			return nil, fmt.Errorf("event type %d has no name", i)
		}
		role, err := model.ParseRole(etDoc.Role)
		if err != nil {
			return nil, fmt.Errorf("event type %q: %w", etDoc.Name, err)
		}
		et := model.NewEventType(etDoc.Name, etDoc.Definition, role)
		if _, added := schema.EventTypes.Reconcile(et); !added {
			return nil, fmt.Errorf("duplicate event type %q", etDoc.Name)
		}
		for _, p := range etDoc.Properties {
			def := p.Doc.Definition
			if def == "" {
				def = p.Doc.Description
			}
			if _, added := et.Properties.Merge(model.EventProperty{Name: p.Name, Definition: def, Choices: p.Doc.Choices}); !added {
				return nil, fmt.Errorf("event type %q: duplicate property %q", etDoc.Name, p.Name)
			}
		}
	}
	return schema, nil
}

// Store reads and writes a schema document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the schema document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Save writes schema to the store path, replacing any existing document atomically.
func (s *Store) Save(schema *model.DataSchema) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schema-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, schema); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

// Load reads the document at the store path.
func (s *Store) Load() (*model.DataSchema, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer f.Close()

	schema, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return schema, nil
}
