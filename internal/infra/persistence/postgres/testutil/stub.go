// Package testutil provides a normalized stub database for postgres backend tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// StubConn records normalized statements for the postgres backend during tests.
// It understands the small SQL dialect the backend emits: CREATE TABLE,
// INSERT ... ON CONFLICT(cols) and SELECT cols FROM table WHERE a = $1 AND b = $2.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		return driver.RowsAffected(0), nil
	}
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", table)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if keys := parseConflict(query); len(keys) > 0 {
		var filtered []map[string]any
		for _, existing := range c.Tables[table] {
			if sameKey(existing, row, keys) {
				continue
			}
			filtered = append(filtered, existing)
		}
		c.Tables[table] = filtered
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.Tables == nil {
		c.Tables = make(map[string][]map[string]any)
	}
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	var values [][]driver.Value
	for _, row := range c.Tables[table] {
		if !matchesWhere(row, where, args) {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func sameKey(a, b map[string]any, keys []string) bool {
	for _, k := range keys {
		if fmt.Sprint(a[k]) != fmt.Sprint(b[k]) {
			return false
		}
	}
	return true
}

func matchesWhere(row map[string]any, where map[string]int, args []driver.NamedValue) bool {
	for col, pos := range where {
		if pos < 1 || pos > len(args) {
			return false
		}
		if fmt.Sprint(row[col]) != fmt.Sprint(args[pos-1].Value) {
			return false
		}
	}
	return true
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	cols := splitColumns(rest[open+1 : closeIdx])
	return table, cols, nil
}

func parseConflict(query string) []string {
	up := strings.ToUpper(query)
	idx := strings.Index(up, "ON CONFLICT")
	if idx == -1 {
		return nil
	}
	rest := query[idx+len("ON CONFLICT"):]
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx <= open {
		return nil
	}
	return splitColumns(rest[open+1 : closeIdx])
}

func parseSelect(query string) (string, []string, map[string]int, error) {
	lower := strings.ToLower(query)
	selectPrefix := "select "
	fromToken := " from "
	whereToken := " where "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := query[len(selectPrefix):fromIdx]
	rest := strings.TrimSpace(lower[fromIdx+len(fromToken):])
	if rest == "" {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table := strings.Fields(rest)[0]
	where := make(map[string]int)
	if whereIdx := strings.Index(rest, strings.TrimSpace(whereToken)+" "); whereIdx != -1 {
		for _, cond := range strings.Split(rest[whereIdx+len("where "):], " and ") {
			parts := strings.SplitN(cond, "=", 2)
			if len(parts) != 2 {
				return "", nil, nil, fmt.Errorf("cannot parse predicate %q", cond)
			}
			pos, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(parts[1]), "$"))
			if err != nil {
				return "", nil, nil, fmt.Errorf("cannot parse placeholder %q", parts[1])
			}
			where[strings.TrimSpace(parts[0])] = pos
		}
	}
	return table, splitColumns(cols), where, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
