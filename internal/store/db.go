package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Knetic/go-namedParameterQuery"
	"github.com/jmoiron/sqlx"
)

// DB is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// bind turns a :named query into a positional one, expanding slice params
// for IN clauses.
func bind(query string, params map[string]any) (string, []interface{}, error) {
	q := namedParameterQuery.NewNamedParameterQuery(query)
	q.SetValuesFromMap(params)
	parsed, args, err := sqlx.In(q.GetParsedQuery(), q.GetParsedParameters()...)
	if err != nil {
		return "", nil, fmt.Errorf("sqlx in: %w", err)
	}
	return parsed, args, nil
}

func QueryListNamed[T any](ctx context.Context, conn DB, query string, params map[string]any) ([]T, error) {
	query, args, err := bind(query, params)
	if err != nil {
		return nil, err
	}
	target := []T{}
	if err := conn.SelectContext(ctx, &target, query, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return target, nil
}

// QueryNamedOne wraps sql.ErrNoRows when nothing matches.
func QueryNamedOne[T any](ctx context.Context, conn DB, query string, params map[string]any) (T, error) {
	var target T
	query, args, err := bind(query, params)
	if err != nil {
		return target, err
	}
	if err := conn.GetContext(ctx, &target, query, args...); err != nil {
		return target, fmt.Errorf("get: %w", err)
	}
	return target, nil
}

func QueryCountNamed(ctx context.Context, conn DB, query string, params map[string]any) (int, error) {
	query, args, err := bind(query, params)
	if err != nil {
		return 0, err
	}
	var count int
	if err := conn.QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return count, nil
}

// ExecNamed returns the number of rows affected.
func ExecNamed(ctx context.Context, conn DB, query string, params map[string]any) (int64, error) {
	query, args, err := bind(query, params)
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return res.RowsAffected()
}

func ExecNamedLastID(ctx context.Context, conn DB, query string, params map[string]any) (int64, error) {
	query, args, err := bind(query, params)
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return res.LastInsertId()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
