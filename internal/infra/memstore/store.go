// Package memstore is an in-memory entity.Repository. It backs fixture runs
// without a database and the use case tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

var _ entity.Repository = (*Store)(nil)

type table struct {
	columns []string
	index   map[string]int
	rows    map[string]entity.Row
	order   []string
}

type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Upsert(ctx context.Context, tbl entity.Table, rows []entity.Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tableFor(tbl)
	if err != nil {
		return 0, err
	}
	keyIdx, ok := t.index[tbl.Key]
	if !ok {
		return 0, eris.Errorf("memstore: key column %q not in %s", tbl.Key, tbl.Name)
	}

	// validate the whole batch first so a bad row leaves the table untouched
	for i, row := range rows {
		if len(row) != len(t.columns) {
			return 0, eris.Errorf("memstore: row %d of %s has %d values, want %d", i, tbl.Name, len(row), len(t.columns))
		}
		if row[keyIdx] == nil {
			return 0, eris.Errorf("memstore: row %d of %s has a null key", i, tbl.Name)
		}
	}

	var affected int64
	for _, row := range rows {
		key := fmt.Sprint(row[keyIdx])
		existing, found := t.rows[key]
		if found && rowsEqual(existing, row) {
			continue
		}
		if !found {
			t.order = append(t.order, key)
		}
		t.rows[key] = append(entity.Row(nil), row...)
		affected++
	}
	return affected, nil
}

func (s *Store) Count(ctx context.Context, name string, filter entity.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return 0, nil
	}
	match, err := t.matcher(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, key := range t.order {
		if match(t.rows[key]) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Aggregate(ctx context.Context, name, groupBy, sumColumn string, filter entity.Filter) ([]entity.AggregateRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		if groupBy == "" {
			return []entity.AggregateRow{{}}, nil
		}
		return nil, nil
	}
	sumIdx, ok := t.index[sumColumn]
	if !ok {
		return nil, eris.Errorf("memstore: unknown column %q in %s", sumColumn, name)
	}
	groupIdx := -1
	if groupBy != "" {
		if groupIdx, ok = t.index[groupBy]; !ok {
			return nil, eris.Errorf("memstore: unknown column %q in %s", groupBy, name)
		}
	}
	match, err := t.matcher(filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*entity.AggregateRow)
	var order []string
	if groupIdx < 0 {
		groups[""] = &entity.AggregateRow{}
		order = append(order, "")
	}

	for _, key := range t.order {
		row := t.rows[key]
		if !match(row) {
			continue
		}
		group := ""
		if groupIdx >= 0 && row[groupIdx] != nil {
			group = fmt.Sprint(row[groupIdx])
		}
		agg, ok := groups[group]
		if !ok {
			agg = &entity.AggregateRow{Group: group}
			groups[group] = agg
			order = append(order, group)
		}
		agg.Count++
		agg.Sum += toCents(row[sumIdx])
	}

	out := make([]entity.AggregateRow, 0, len(order))
	for _, g := range order {
		out = append(out, *groups[g])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sum != out[j].Sum {
			return out[i].Sum > out[j].Sum
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

// Rows returns a copy of a table's rows in first-insert order.
func (s *Store) Rows(name string) []entity.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]entity.Row, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, append(entity.Row(nil), t.rows[key]...))
	}
	return out
}

// Ping always succeeds; it lets the health check treat both stores alike.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) tableFor(tbl entity.Table) (*table, error) {
	if t, ok := s.tables[tbl.Name]; ok {
		if !reflect.DeepEqual(t.columns, tbl.Columns) {
			return nil, eris.Errorf("memstore: column set of %s changed", tbl.Name)
		}
		return t, nil
	}
	t := &table{
		columns: append([]string(nil), tbl.Columns...),
		index:   make(map[string]int, len(tbl.Columns)),
		rows:    make(map[string]entity.Row),
	}
	for i, c := range tbl.Columns {
		t.index[c] = i
	}
	s.tables[tbl.Name] = t
	return t, nil
}

func (t *table) matcher(filter entity.Filter) (func(entity.Row) bool, error) {
	type cond struct {
		idx   int
		value any
	}
	conds := make([]cond, 0, len(filter))
	for col, v := range filter {
		idx, ok := t.index[col]
		if !ok {
			return nil, eris.Errorf("memstore: unknown filter column %q", col)
		}
		conds = append(conds, cond{idx: idx, value: v})
	}
	return func(row entity.Row) bool {
		for _, c := range conds {
			if !valuesEqual(row[c.idx], c.value) {
				return false
			}
		}
		return true
	}, nil
}

func rowsEqual(a, b entity.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func toCents(v any) entity.Cents {
	switch n := v.(type) {
	case entity.Cents:
		return n
	case int:
		return entity.Cents(n) * 100
	case int64:
		return entity.Cents(n) * 100
	case float64:
		return entity.Cents(math.Round(n * 100))
	case string:
		c, _ := entity.ParseCents(n)
		return c
	default:
		return 0
	}
}
