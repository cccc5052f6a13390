// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlitekit

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"

	"github.com/jmoiron/sqlx"
)

// Mode is the way a prepared statement is executed.
type Mode int

const (
	// ModeRun executes a mutation and reports rows changed.
	ModeRun Mode = iota
	// ModeGet fetches at most one row.
	ModeGet
	// ModeAll fetches every row.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeGet:
		return "get"
	case ModeAll:
		return "all"
	}
	return "unknown"
}

// reSelect matches a statement that begins with the SELECT keyword.
var reSelect = regexp.MustCompile(`(?i)^\s*SELECT\b`)

// ClassifyMode returns the execution mode for query. Statements starting
// with SELECT fetch rows, one row if singleton is set. Anything else runs as
// a mutation regardless of singleton.
func ClassifyMode(query string, singleton bool) Mode {
	if !reSelect.MatchString(query) {
		return ModeRun
	}
	if singleton {
		return ModeGet
	}
	return ModeAll
}

// Row is a fetched row keyed by column name.
type Row map[string]any

// Result is the outcome of executing a Statement. Which fields are set
// depends on Mode.
type Result struct {
	Mode Mode

	// Columns lists the result columns in select order (ModeGet, ModeAll).
	Columns []string

	// Row is the first matching row, or nil if none matched (ModeGet).
	Row Row

	// Rows holds every matching row (ModeAll).
	Rows []Row

	// Changes and LastInsertID are reported by the engine (ModeRun).
	Changes      int64
	LastInsertID int64
}

// Statement pairs a prepared statement with its execution mode.
type Statement struct {
	db    *DB
	stmt  *sqlx.Stmt
	query string
	mode  Mode
}

// Prepare compiles query and infers its execution mode. Engine errors are
// returned unchanged.
func (db *DB) Prepare(ctx context.Context, query string, singleton bool) (*Statement, error) {
	if db.IsClosed() {
		return nil, ErrClosed
	}
	stmt, err := db.x.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Statement{
		db:    db,
		stmt:  stmt,
		query: query,
		mode:  ClassifyMode(query, singleton),
	}, nil
}

// Run prepares query, executes it once with params and closes the statement.
func (db *DB) Run(ctx context.Context, query string, singleton bool, params ...any) (Result, error) {
	st, err := db.Prepare(ctx, query, singleton)
	if err != nil {
		return Result{}, err
	}
	defer st.Close()
	return st.Execute(ctx, params...)
}

// Mode returns the inferred execution mode.
func (st *Statement) Mode() Mode {
	return st.mode
}

// SQL returns the statement text.
func (st *Statement) SQL() string {
	return st.query
}

// Close releases the prepared statement.
func (st *Statement) Close() error {
	return st.stmt.Close()
}

// Execute flattens params and runs the statement in its mode.
// Engine errors are returned unchanged.
func (st *Statement) Execute(ctx context.Context, params ...any) (Result, error) {
	if st.db.IsClosed() {
		return Result{}, ErrClosed
	}

	args := Flatten(params...)
	st.log(ctx, args)

	switch st.mode {
	case ModeGet:
		return st.get(ctx, args)
	case ModeAll:
		return st.all(ctx, args)
	}
	return st.run(ctx, args)
}

func (st *Statement) run(ctx context.Context, args []any) (Result, error) {
	res, err := st.stmt.ExecContext(ctx, args...)
	if err != nil {
		return Result{}, err
	}
	result := Result{Mode: ModeRun}
	if result.Changes, err = res.RowsAffected(); err != nil {
		return Result{}, err
	}
	if result.LastInsertID, err = res.LastInsertId(); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (st *Statement) get(ctx context.Context, args []any) (Result, error) {
	row := st.stmt.QueryRowxContext(ctx, args...)
	columns, err := row.Columns()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Mode: ModeGet}, nil
		}
		return Result{}, err
	}
	m := make(Row, len(columns))
	if err := row.MapScan(m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Mode: ModeGet, Columns: columns}, nil
		}
		return Result{}, err
	}
	return Result{Mode: ModeGet, Columns: columns, Row: m}, nil
}

func (st *Statement) all(ctx context.Context, args []any) (Result, error) {
	rows, err := st.stmt.QueryxContext(ctx, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	result := Result{Mode: ModeAll, Columns: columns, Rows: []Row{}}
	for rows.Next() {
		m := make(Row, len(columns))
		if err := rows.MapScan(m); err != nil {
			return Result{}, err
		}
		result.Rows = append(result.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (st *Statement) log(ctx context.Context, args []any) {
	level := slog.LevelDebug
	if st.db.verbose {
		level = slog.LevelInfo
	}
	st.db.logger.Log(ctx, level, "execute", "mode", st.mode, "sql", st.query, "params", len(args))
}
