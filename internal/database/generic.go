package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// GenericCreate inserts data and passes the returned rows to onRows.
func GenericCreate[T any](r RepositoryInterface, ctx context.Context, table string, data interface{}, onRows func([]T)) error {
	if data == nil {
		return fmt.Errorf("%w: %s: data cannot be nil", ErrInvalidInput, table)
	}
	resp, err := r.Request(ctx, "POST", table, data, "")
	if err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return decodeRows(resp, table, onRows)
}

// GenericUpsert inserts or merges on the conflict columns.
func GenericUpsert[T any](r RepositoryInterface, ctx context.Context, table string, data interface{}, onConflict string, onRows func([]T)) error {
	if data == nil {
		return fmt.Errorf("%w: %s: data cannot be nil", ErrInvalidInput, table)
	}
	query := ""
	if onConflict != "" {
		query = "on_conflict=" + url.QueryEscape(onConflict)
	}
	resp, err := r.Request(ctx, "POST", table, data, query, WithPrefer("resolution=merge-duplicates"))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return decodeRows(resp, table, onRows)
}

// GenericUpdate patches the rows matching field=value.
func GenericUpdate(r RepositoryInterface, ctx context.Context, table, field, value string, data interface{}) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s: %s cannot be empty", ErrInvalidInput, table, field)
	}
	_, err := r.Request(ctx, "PATCH", table, data, NewQuery().Eq(field, value).Build())
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// GenericUpdateWhere patches rows matching query and returns them.
// It is used for conditional transitions such as status=eq.pending.
func GenericUpdateWhere[T any](r RepositoryInterface, ctx context.Context, table, query string, data interface{}) ([]T, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: %s: refusing unfiltered update", ErrInvalidInput, table)
	}
	resp, err := r.Request(ctx, "PATCH", table, data, query)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	var rows []T
	if err := decodeRows(resp, table, func(got []T) { rows = got }); err != nil {
		return nil, err
	}
	return rows, nil
}

// GenericGetByField returns the single row where field=value, or ErrNotFound.
func GenericGetByField[T any](r RepositoryInterface, ctx context.Context, table, field, value string) (*T, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: %s: %s cannot be empty", ErrInvalidInput, table, field)
	}
	rows, err := GenericListWithQuery[T](r, ctx, table, NewQuery().Eq(field, value).Limit(1).Build())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NotFoundError(table, field, value)
	}
	return &rows[0], nil
}

// GenericListByField lists rows where field=value.
func GenericListByField[T any](r RepositoryInterface, ctx context.Context, table, field, value string) ([]T, error) {
	return GenericListWithQuery[T](r, ctx, table, NewQuery().Eq(field, value).Build())
}

// GenericListWithQuery lists rows using a prebuilt PostgREST query string.
func GenericListWithQuery[T any](r RepositoryInterface, ctx context.Context, table, query string) ([]T, error) {
	resp, err := r.Request(ctx, "GET", table, nil, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	var rows []T
	if err := decodeRows(resp, table, func(got []T) { rows = got }); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// GenericDelete deletes the rows matching field=value.
func GenericDelete(r RepositoryInterface, ctx context.Context, table, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s: %s cannot be empty", ErrInvalidInput, table, field)
	}
	if _, err := r.Request(ctx, "DELETE", table, nil, NewQuery().Eq(field, value).Build()); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func decodeRows[T any](resp []byte, table string, onRows func([]T)) error {
	if onRows == nil || len(resp) == 0 {
		return nil
	}
	var rows []T
	if err := json.Unmarshal(resp, &rows); err != nil {
		return fmt.Errorf("%w: unmarshal %s: %v", ErrDatabaseError, table, err)
	}
	onRows(rows)
	return nil
}
