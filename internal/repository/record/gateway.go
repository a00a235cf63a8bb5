// Package record is the system-of-record gateway: entity-aware reads and writes over Postgres.
package record

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	"github.com/kailas-cloud/scopedex/internal/logger"
)

// store is the consumer interface for the record gateway (ISP).
type store interface {
	db.Querier
	Tx(ctx context.Context, fn func(q db.Querier) error) error
}

// Gateway implements the system-of-record side of list, retrieve and write-through.
type Gateway struct {
	store store
}

// New creates a record gateway.
func New(s store) *Gateway {
	return &Gateway{store: s}
}

// List returns one page of rows. Clauses without a SQL rendering are dropped
// and logged; the remaining ones are AND'd.
func (g *Gateway) List(
	ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]entity.Row, error) {
	sql, args, dropped := buildList(desc, q, offset, limit)
	if len(dropped) > 0 {
		log := logger.FromContext(ctx)
		for _, d := range dropped {
			log.Warn("clause dropped on store read",
				zap.String("entity", desc.Name),
				zap.String("field", d.Field),
				zap.String("reason", d.Reason),
			)
		}
	}

	rows, err := readRows(ctx, g.store, sql, args)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := loadRelations(ctx, g.store, desc, rows); err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

// Get returns the row with the given id.
func (g *Gateway) Get(ctx context.Context, desc *entity.Descriptor, id int64) (entity.Row, error) {
	row, err := getOne(ctx, g.store, desc, id)
	if err != nil {
		return entity.Row{}, mapErr(err)
	}
	return row, nil
}

// Create inserts a row from document-keyed values and returns it as stored.
func (g *Gateway) Create(ctx context.Context, desc *entity.Descriptor, values map[string]any) (entity.Row, error) {
	cols, vals, err := columnValues(desc, values)
	if err != nil {
		return entity.Row{}, err
	}

	var out entity.Row
	err = g.store.Tx(ctx, func(q db.Querier) error {
		placeholders := make([]string, len(cols))
		quoted := make([]string, len(cols))
		for i, c := range cols {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			quoted[i] = quote(c)
		}
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			quote(desc.Table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), quote(entity.IDField))
		if len(cols) == 0 {
			sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", quote(desc.Table), quote(entity.IDField))
		}

		var id int64
		if err := q.QueryRow(ctx, sql, vals...).Scan(&id); err != nil {
			return err
		}
		row, err := getOne(ctx, q, desc, id)
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return entity.Row{}, mapErr(err)
	}
	return out, nil
}

// Update applies document-keyed values to an existing row and returns it as stored.
func (g *Gateway) Update(
	ctx context.Context, desc *entity.Descriptor, id int64, values map[string]any,
) (entity.Row, error) {
	cols, vals, err := columnValues(desc, values)
	if err != nil {
		return entity.Row{}, err
	}

	var out entity.Row
	err = g.store.Tx(ctx, func(q db.Querier) error {
		if len(cols) > 0 {
			sets := make([]string, len(cols))
			for i, c := range cols {
				sets[i] = fmt.Sprintf("%s = $%d", quote(c), i+1)
			}
			sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
				quote(desc.Table), strings.Join(sets, ", "), quote(entity.IDField), len(cols)+1)
			n, err := q.Exec(ctx, sql, append(vals, id)...)
			if err != nil {
				return err
			}
			if n == 0 {
				return db.ErrNoRows
			}
		}
		row, err := getOne(ctx, q, desc, id)
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return entity.Row{}, mapErr(err)
	}
	return out, nil
}

// Delete removes the row with the given id.
func (g *Gateway) Delete(ctx context.Context, desc *entity.Descriptor, id int64) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quote(desc.Table), quote(entity.IDField))
	n, err := g.store.Exec(ctx, sql, id)
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// columnValues validates a write payload and maps document keys onto own-field columns.
// Columns come back sorted so statements are deterministic.
func columnValues(desc *entity.Descriptor, values map[string]any) ([]string, []any, error) {
	byColumn := make(map[string]any, len(values))
	for key, v := range values {
		if key == entity.IDField {
			continue
		}
		attr, ok := desc.Lookup(key)
		if !ok || attr.Flattened() {
			return nil, nil, fmt.Errorf("%w: %q is not a writable field of %s", domain.ErrInvalidPayload, key, desc.Name)
		}
		cv, err := coerceWrite(attr.Field.Kind, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: field %q: %w", domain.ErrInvalidPayload, key, err)
		}
		byColumn[attr.Field.ColumnName()] = cv
	}

	cols := make([]string, 0, len(byColumn))
	for c := range byColumn {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = byColumn[c]
	}
	return cols, vals, nil
}

// mapErr translates store errors into domain errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidPayload):
		return err
	case errors.Is(err, db.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, db.ErrUniqueViolation):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	case errors.Is(err, db.ErrForeignKeyViolation), errors.Is(err, db.ErrConstraintViolation):
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSystemOfRecord, err)
}
