package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

const (
	// Postgres caps bind parameters per statement at 65535.
	maxBindParams   = 65535
	defaultMaxBatch = 500
)

var _ entity.Repository = (*PostgresStore)(nil)

// PostgresStore implements entity.Repository on a database/sql handle.
type PostgresStore struct {
	DB       *sql.DB
	maxBatch int
	logger   *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{DB: db, maxBatch: defaultMaxBatch, logger: logger}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Upsert writes rows in one transaction. Existing rows are only rewritten
// when a non-key column differs, so RowsAffected counts real changes.
func (s *PostgresStore) Upsert(ctx context.Context, table entity.Table, rows []entity.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	keyIdx, err := validateBatch(table, rows)
	if err != nil {
		return 0, err
	}
	rows = lastWins(rows, keyIdx)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err, "begin upsert "+table.Name)
	}
	defer tx.Rollback() //nolint:errcheck

	var affected int64
	for _, chunk := range chunkRows(rows, batchSize(len(table.Columns), s.maxBatch)) {
		query, args := buildUpsert(table, chunk)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, classify(err, "upsert "+table.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "rows affected")
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(err, "commit upsert "+table.Name)
	}

	s.logger.Debug("database: upsert committed",
		zap.String("table", table.Name),
		zap.Int("rows", len(rows)),
		zap.Int64("affected", affected),
	)
	return affected, nil
}

func (s *PostgresStore) Count(ctx context.Context, table string, filter entity.Filter) (int64, error) {
	where, args := buildWhere(filter, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", pq.QuoteIdentifier(table), where)

	var n int64
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify(err, "count "+table)
	}
	return n, nil
}

func (s *PostgresStore) Aggregate(ctx context.Context, table, groupBy, sumColumn string, filter entity.Filter) ([]entity.AggregateRow, error) {
	query, args := buildAggregate(table, groupBy, sumColumn, filter)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "aggregate "+table)
	}
	defer rows.Close()

	var out []entity.AggregateRow
	for rows.Next() {
		var (
			agg entity.AggregateRow
			sum string
		)
		if err := rows.Scan(&agg.Group, &agg.Count, &sum); err != nil {
			return nil, eris.Wrap(err, "scan aggregate row")
		}
		cents, ok := entity.ParseCents(sum)
		if !ok {
			return nil, eris.Errorf("aggregate %s: unparseable sum %q", table, sum)
		}
		agg.Sum = cents
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "aggregate "+table)
	}
	return out, nil
}

func validateBatch(table entity.Table, rows []entity.Row) (int, error) {
	keyIdx := -1
	for i, c := range table.Columns {
		if c == table.Key {
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		return 0, eris.Errorf("database: key column %q not in %s", table.Key, table.Name)
	}
	for i, row := range rows {
		if len(row) != len(table.Columns) {
			return 0, eris.Errorf("database: row %d of %s has %d values, want %d", i, table.Name, len(row), len(table.Columns))
		}
		if row[keyIdx] == nil {
			return 0, eris.Errorf("database: row %d of %s has a null key", i, table.Name)
		}
	}
	return keyIdx, nil
}

// lastWins drops earlier rows sharing a key; one INSERT cannot touch the
// same conflict target twice.
func lastWins(rows []entity.Row, keyIdx int) []entity.Row {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[fmt.Sprint(row[keyIdx])] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([]entity.Row, 0, len(last))
	for i, row := range rows {
		if last[fmt.Sprint(row[keyIdx])] == i {
			out = append(out, row)
		}
	}
	return out
}

func batchSize(columns, maxBatch int) int {
	if columns < 1 {
		columns = 1
	}
	n := maxBindParams / columns
	if maxBatch > 0 && n > maxBatch {
		n = maxBatch
	}
	return n
}

func chunkRows(rows []entity.Row, size int) [][]entity.Row {
	if size < 1 {
		size = 1
	}
	chunks := make([][]entity.Row, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func buildUpsert(table entity.Table, rows []entity.Row) (string, []any) {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = pq.QuoteIdentifier(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) VALUES ", pq.QuoteIdentifier(table.Name), strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	key := pq.QuoteIdentifier(table.Key)
	var set, current, incoming []string
	for i, c := range table.Columns {
		if c == table.Key {
			continue
		}
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", cols[i], cols[i]))
		current = append(current, "t."+cols[i])
		incoming = append(incoming, "EXCLUDED."+cols[i])
	}
	if len(set) == 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", key)
		return b.String(), args
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s WHERE (%s) IS DISTINCT FROM (%s)",
		key,
		strings.Join(set, ", "),
		strings.Join(current, ", "),
		strings.Join(incoming, ", "),
	)
	return b.String(), args
}

// buildWhere renders filter as AND-ed equality predicates with placeholders
// numbered from first. Keys are sorted so the SQL is stable.
func buildWhere(filter entity.Filter, first int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		preds[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), first+i)
		args[i] = filter[k]
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

func buildAggregate(table, groupBy, sumColumn string, filter entity.Filter) (string, []any) {
	where, args := buildWhere(filter, 1)
	sum := fmt.Sprintf("COALESCE(SUM(%s), 0)", pq.QuoteIdentifier(sumColumn))
	from := pq.QuoteIdentifier(table)

	if groupBy == "" {
		return fmt.Sprintf("SELECT '' AS grp, COUNT(*), %s::text FROM %s%s", sum, from, where), args
	}
	group := pq.QuoteIdentifier(groupBy)
	return fmt.Sprintf(
		"SELECT COALESCE(%s::text, '') AS grp, COUNT(*), %s::text FROM %s%s GROUP BY %s ORDER BY %s DESC, grp ASC",
		group, sum, from, where, group, sum,
	), args
}

// classify attaches the SQLSTATE, when the driver reports one, to the error.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return eris.Wrapf(err, "%s: %s (sqlstate %s)", op, describeState(pgErr.Code), pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return eris.Wrapf(err, "%s: %s (sqlstate %s)", op, describeState(code), code)
	}
	return eris.Wrap(err, op)
}

func describeState(code string) string {
	switch code {
	case "42P01":
		return "table missing, run migrations"
	case "42703":
		return "unknown column"
	case "23502":
		return "null value in required column"
	case "22P02", "22003":
		return "invalid value for column type"
	case "40001", "40P01":
		return "transaction conflict"
	default:
		return "database error"
	}
}
