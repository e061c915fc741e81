package entity

import "time"

// RawDeal is a flattened upstream deal. Amount is "0" when the upstream
// property is absent; CloseDate is empty when the deal has not closed.
type RawDeal struct {
	ID             string
	Name           string
	Amount         string
	Stage          string
	CreatedAt      string
	LastModifiedAt string
	CloseDate      string
}

type Deal struct {
	ExternalID      string     `json:"external_id"`
	Name            string     `json:"name"`
	AmountUSD       Cents      `json:"amount_usd"`
	Stage           string     `json:"stage"`
	CloseDate       *time.Time `json:"close_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	SourceUpdatedAt time.Time  `json:"source_updated_at"`
	IsHighValue     bool       `json:"is_high_value"`
	LastSyncedAt    time.Time  `json:"last_synced_at"`
}

// DefaultHighValueThreshold is 10000.00 USD.
const DefaultHighValueThreshold Cents = 1_000_000

// IsHighValue reports whether amount reaches threshold.
func IsHighValue(amount, threshold Cents) bool {
	return amount >= threshold
}

var DealsTable = Table{
	Name: "crm_deals",
	Key:  "external_id",
	Columns: []string{
		"external_id",
		"name",
		"amount_usd",
		"stage",
		"close_date",
		"created_at",
		"source_updated_at",
		"is_high_value",
		"last_synced_at",
	},
}

func (d Deal) Row() Row {
	var closeDate any
	if d.CloseDate != nil {
		closeDate = d.CloseDate.UTC()
	}
	return Row{
		d.ExternalID,
		d.Name,
		d.AmountUSD,
		d.Stage,
		closeDate,
		d.CreatedAt.UTC(),
		d.SourceUpdatedAt.UTC(),
		d.IsHighValue,
		d.LastSyncedAt.UTC(),
	}
}
