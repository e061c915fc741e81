package hubspot

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Property is one upstream property value. Valid is false for JSON/YAML null.
// HubSpot sends every value as a string; numbers and booleans are kept as
// their literal text.
type Property struct {
	Value string
	Valid bool
}

func (p *Property) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*p = Property{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Property{Value: s, Valid: true}
		return nil
	}
	*p = Property{Value: raw, Valid: true}
	return nil
}

func (p *Property) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*p = Property{}
		return nil
	}
	*p = Property{Value: node.Value, Valid: true}
	return nil
}

// Object is one CRM record as returned by the objects API.
type Object struct {
	ID         string              `json:"id" yaml:"id"`
	Properties map[string]Property `json:"properties" yaml:"properties"`
	CreatedAt  string              `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt  string              `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Archived   bool                `json:"archived,omitempty" yaml:"archived,omitempty"`
}

// Prop returns the property text, or "" when absent or null.
func (o Object) Prop(name string) string {
	p, ok := o.Properties[name]
	if !ok || !p.Valid {
		return ""
	}
	return p.Value
}

type pagingNext struct {
	After string `json:"after"`
}

type paging struct {
	Next *pagingNext `json:"next,omitempty"`
}

// Page is one response of the list endpoint.
type Page struct {
	Results []Object `json:"results"`
	Paging  *paging  `json:"paging,omitempty"`
}

// NextCursor returns the continuation cursor, or "" on the last page.
func (p *Page) NextCursor() string {
	if p == nil || p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

func newPage(results []Object, next string) *Page {
	page := &Page{Results: results}
	if next != "" {
		page.Paging = &paging{Next: &pagingNext{After: next}}
	}
	return page
}
