package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
)

// Search runs a filtered, paginated FT.SEARCH built from compiled clauses.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if q.Offset < 0 {
		return nil, errors.New("offset must not be negative")
	}

	queryStr, matchNone, err := buildQuery(q.Schema, q.Filters)
	if err != nil {
		return nil, err
	}
	if matchNone {
		return &db.SearchResult{}, nil
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	sortArgs, err := buildSort(q)
	if err != nil {
		return nil, err
	}
	args = append(args, sortArgs...)

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseListResult(raw)
}

// buildSort picks explicit ordering first; without it a search term sorts by relevance
// and a plain filter falls back to DefaultSort.
func buildSort(q *db.SearchQuery) ([]string, error) {
	o := q.Filters.Ordering
	if o == nil && q.Filters.Search == nil {
		o = q.DefaultSort
	}
	if o == nil {
		return nil, nil
	}
	if _, ok := q.Schema[o.Field]; !ok {
		return nil, domain.NewClauseError(o.Field, "not a sortable attribute")
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return []string{"SORTBY", o.Field, dir}, nil
}

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{Total: 0}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
