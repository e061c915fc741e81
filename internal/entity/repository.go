package entity

import (
	"context"
)

// EntityType names one of the synced CRM object streams.
type EntityType string

const (
	EntityLeads EntityType = "leads"
	EntityDeals EntityType = "deals"
)

// Table describes a target relation: its name, natural key and the column
// order used by Row values.
type Table struct {
	Name    string
	Key     string
	Columns []string
}

// Row holds one record's values ordered as Table.Columns.
type Row []any

// Filter is a set of column = value predicates, AND-ed together.
type Filter map[string]any

// AggregateRow is one group of an Aggregate query. Group is empty when the
// query is not grouped.
type AggregateRow struct {
	Group string
	Count int64
	Sum   Cents
}

// Repository is the storage contract consumed by the loader and reports.
type Repository interface {
	// Upsert inserts rows whose key is absent and updates the non-key columns
	// of existing rows when at least one value differs. It returns the number
	// of rows inserted or changed.
	Upsert(ctx context.Context, table Table, rows []Row) (int64, error)
	Count(ctx context.Context, table string, filter Filter) (int64, error)
	// Aggregate counts rows and sums sumColumn per distinct groupBy value,
	// ordered by sum descending. An empty groupBy yields a single row.
	Aggregate(ctx context.Context, table, groupBy, sumColumn string, filter Filter) ([]AggregateRow, error)
}
