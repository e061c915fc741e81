package hubspot

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// PageFetcher returns one page of a collection. Client and Fixture implement it.
type PageFetcher interface {
	FetchPage(ctx context.Context, objectType string, properties []string, limit int, after string) (*Page, error)
}

// Extractor walks cursors until the collection is exhausted.
type Extractor struct {
	pages    PageFetcher
	pageSize int
	logger   *zap.Logger
}

func NewExtractor(pages PageFetcher, pageSize int, logger *zap.Logger) *Extractor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{pages: pages, pageSize: pageSize, logger: logger}
}

// FetchAll returns every object of objectType in upstream order. Any page
// failure aborts the whole fetch; partial results are never returned.
func (e *Extractor) FetchAll(ctx context.Context, objectType string, properties []string) ([]Object, error) {
	var (
		all   []Object
		after string
		pages int
	)
	seen := map[string]struct{}{}
	for {
		page, err := e.pages.FetchPage(ctx, objectType, properties, e.pageSize, after)
		if err != nil {
			return nil, err
		}
		pages++
		all = append(all, page.Results...)

		next := page.NextCursor()
		if next == "" {
			break
		}
		if _, dup := seen[next]; dup {
			return nil, &entity.SourceUnavailable{
				Entity:   entityFor(objectType),
				Attempts: 1,
				Cause:    eris.Errorf("hubspot: cursor %q repeated while paging %s", next, objectType),
			}
		}
		seen[next] = struct{}{}
		after = next
	}

	e.logger.Info("hubspot: fetched collection",
		zap.String("object_type", objectType),
		zap.Int("pages", pages),
		zap.Int("objects", len(all)),
	)
	return all, nil
}

func (e *Extractor) FetchLeads(ctx context.Context) ([]entity.RawLead, error) {
	objects, err := e.FetchAll(ctx, ObjectContacts, LeadProperties)
	if err != nil {
		return nil, err
	}
	leads := make([]entity.RawLead, 0, len(objects))
	for _, o := range objects {
		if e.skip(o) {
			continue
		}
		leads = append(leads, ToRawLead(o))
	}
	return leads, nil
}

func (e *Extractor) FetchDeals(ctx context.Context) ([]entity.RawDeal, error) {
	objects, err := e.FetchAll(ctx, ObjectDeals, DealProperties)
	if err != nil {
		return nil, err
	}
	deals := make([]entity.RawDeal, 0, len(objects))
	for _, o := range objects {
		if e.skip(o) {
			continue
		}
		deals = append(deals, ToRawDeal(o))
	}
	return deals, nil
}

func (e *Extractor) skip(o Object) bool {
	if strings.TrimSpace(o.ID) != "" {
		return false
	}
	e.logger.Warn("hubspot: skipping object without id")
	return true
}
