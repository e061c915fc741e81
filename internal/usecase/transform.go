package usecase

import (
	"strconv"
	"strings"
	"time"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

const (
	defaultLeadEmail = "N/A"
	defaultDealName  = "Untitled Deal"
	unknownStage     = "unknown"
)

var epoch = time.Unix(0, 0).UTC()

// timestampLayouts are the upstream date shapes seen in practice: ISO-8601
// datetimes for system properties and plain dates for date pickers.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Transformer maps raw upstream records to target records. It never fails:
// every field has a fallback.
type Transformer struct {
	HighValueThreshold entity.Cents
	Now                func() time.Time
}

func NewTransformer(threshold entity.Cents) *Transformer {
	return &Transformer{HighValueThreshold: threshold, Now: time.Now}
}

func (t *Transformer) now() time.Time {
	if t.Now == nil {
		return time.Now().UTC()
	}
	return t.Now().UTC()
}

func (t *Transformer) TransformLead(raw entity.RawLead) entity.Lead {
	return entity.Lead{
		ExternalID:      strings.TrimSpace(raw.ID),
		Email:           orDefault(raw.Email, defaultLeadEmail),
		FullName:        strings.TrimSpace(raw.FirstName + " " + raw.LastName),
		LifecycleStage:  orDefault(raw.LifecycleStage, unknownStage),
		CreatedAt:       parseTimestampOrEpoch(raw.CreatedAt),
		SourceUpdatedAt: parseTimestampOrEpoch(raw.LastModifiedAt),
		LastSyncedAt:    t.now(),
	}
}

func (t *Transformer) TransformDeal(raw entity.RawDeal) entity.Deal {
	amount, ok := entity.ParseCents(raw.Amount)
	if !ok {
		amount = 0
	}

	var closeDate *time.Time
	if ts, ok := parseTimestamp(raw.CloseDate); ok {
		closeDate = &ts
	}

	return entity.Deal{
		ExternalID:      strings.TrimSpace(raw.ID),
		Name:            orDefault(raw.Name, defaultDealName),
		AmountUSD:       amount,
		Stage:           orDefault(raw.Stage, unknownStage),
		CloseDate:       closeDate,
		CreatedAt:       parseTimestampOrEpoch(raw.CreatedAt),
		SourceUpdatedAt: parseTimestampOrEpoch(raw.LastModifiedAt),
		IsHighValue:     entity.IsHighValue(amount, t.HighValueThreshold),
		LastSyncedAt:    t.now(),
	}
}

func (t *Transformer) TransformLeads(raws []entity.RawLead) []entity.Lead {
	out := make([]entity.Lead, 0, len(raws))
	for _, raw := range raws {
		out = append(out, t.TransformLead(raw))
	}
	return out
}

func (t *Transformer) TransformDeals(raws []entity.RawDeal) []entity.Deal {
	out := make([]entity.Deal, 0, len(raws))
	for _, raw := range raws {
		out = append(out, t.TransformDeal(raw))
	}
	return out
}

func orDefault(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

func parseTimestampOrEpoch(s string) time.Time {
	if ts, ok := parseTimestamp(s); ok {
		return ts
	}
	return epoch
}

// parseTimestamp accepts ISO-8601 text or epoch milliseconds.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
