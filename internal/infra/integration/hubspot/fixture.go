package hubspot

import (
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

//go:embed fixtures/sample.yaml
var sampleFixture []byte

type fixturePage struct {
	Cursor  string   `yaml:"cursor"`
	Next    string   `yaml:"next"`
	Results []Object `yaml:"results"`
}

type fixtureFile struct {
	Objects map[string][]fixturePage `yaml:"objects"`
}

// Fixture serves canned pages keyed by cursor, for offline runs and demos.
type Fixture struct {
	objects map[string][]fixturePage
}

// LoadFixture reads a fixture file; an empty path selects the bundled sample.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return ParseFixture(sampleFixture)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: read fixture %s", path)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "hubspot: parse fixture")
	}
	if f.Objects == nil {
		f.Objects = map[string][]fixturePage{}
	}
	return &Fixture{objects: f.Objects}, nil
}

// FetchPage ignores limit; pages are served exactly as written.
func (f *Fixture) FetchPage(ctx context.Context, objectType string, _ []string, _ int, after string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &entity.SourceUnavailable{Entity: entityFor(objectType), Attempts: 1, Cause: err}
	}
	pages, ok := f.objects[objectType]
	if !ok {
		return newPage(nil, ""), nil
	}
	for _, p := range pages {
		if p.Cursor == after {
			return newPage(p.Results, p.Next), nil
		}
	}
	return nil, &entity.SourceUnavailable{
		Entity:   entityFor(objectType),
		Attempts: 1,
		Cause:    eris.Errorf("hubspot: fixture has no %s page for cursor %q", objectType, after),
	}
}
