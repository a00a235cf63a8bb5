package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kailas-cloud/scopedex/internal/db"
)

// pgxQuerier is the surface shared by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func execOn(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) (int64, error) {
	start := time.Now()
	ct, err := q.Exec(ctx, sql, args...)
	trace(ctx, sql, args, start, err)
	if err != nil {
		return 0, &db.Error{Op: verb(sql), Err: classify(err)}
	}
	return ct.RowsAffected(), nil
}

func queryOn(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) (db.Rows, error) {
	start := time.Now()
	rs, err := q.Query(ctx, sql, args...)
	trace(ctx, sql, args, start, err)
	if err != nil {
		return nil, &db.Error{Op: verb(sql), Err: classify(err)}
	}
	return rows{r: rs}, nil
}

func queryRowOn(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) db.Row {
	start := time.Now()
	r := q.QueryRow(ctx, sql, args...)
	return row{
		r:  r,
		op: verb(sql),
		after: func(scanErr error) {
			trace(ctx, sql, args, start, scanErr)
		},
	}
}

// verb returns the leading SQL keyword, used as the error op.
func verb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "SQL"
	}
	v := strings.ToUpper(fields[0])
	if v == "WITH" {
		return db.OpSelect
	}
	return v
}

type row struct {
	r     pgx.Row
	op    string
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNoRows
	}
	return &db.Error{Op: x.op, Err: classify(err)}
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool { return x.r.Next() }
func (x rows) Err() error { return x.r.Err() }
func (x rows) Close()     { x.r.Close() }

func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

// Values returns the current row with driver-specific types normalized to plain Go values.
func (x rows) Values() ([]any, error) {
	vals, err := x.r.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		vals[i] = normalizeValue(v)
	}
	return vals, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		// uuid
		return pgtype.UUID{Bytes: x, Valid: true}.String()
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		return time.Duration(x.Microseconds * int64(time.Microsecond)).String()
	}
	return v
}
