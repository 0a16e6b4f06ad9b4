package exec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"sqlboost/internal/config"
	"sqlboost/internal/util"
	"sqlboost/internal/work"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// DB is a MySQL/TiDB-backed execution engine.
type DB struct {
	conn    *sql.DB
	timeout time.Duration

	// Observe, when set, is called after every executed statement.
	Observe func(sql string, err error)
}

// Open connects to the database at dsn.
func Open(dsn string, statementTimeoutMs int) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetMaxOpenConns(16)
	timeout := time.Duration(statementTimeoutMs) * time.Millisecond
	return &DB{conn: conn, timeout: timeout}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Ping verifies connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// ExecContext runs a statement without scanning results.
func (d *DB) ExecContext(ctx context.Context, query string) (sql.Result, error) {
	res, err := d.conn.ExecContext(ctx, query)
	if d.Observe != nil {
		d.Observe(query, err)
	}
	return res, err
}

// Execute runs the work item and returns an order-insensitive digest of its
// result set together with the observed latency.
func (d *DB) Execute(ctx context.Context, w work.Work) (Result, error) {
	if d == nil || d.conn == nil {
		return Result{}, errors.New("execute: engine not initialized")
	}
	query := strings.TrimSpace(w.Serialize())
	if query == "" {
		return Result{}, errors.New("execute: empty work item")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	rows, err := d.conn.QueryContext(ctx, query)
	if d.Observe != nil {
		d.Observe(query, err)
	}
	if err != nil {
		return Result{}, err
	}
	defer util.CloseWithErr(rows, "result rows")

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	values := make([][]byte, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	rendered := make([]string, 0, 64)
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return Result{}, err
		}
		row := make([]string, 0, len(cols))
		for _, v := range values {
			if v == nil {
				row = append(row, "NULL")
			} else {
				row = append(row, string(v))
			}
		}
		rendered = append(rendered, strings.Join(row, "\x1f"))
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	return Result{
		RowCount:  len(rendered),
		Digest:    digestRows(rendered),
		ElapsedMs: elapsed,
	}, nil
}

// Tables lists the tables and views of the connected database.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer util.CloseWithErr(rows, "table rows")
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// EnsureDatabase creates the database if it does not exist.
func EnsureDatabase(ctx context.Context, dsn string, dbName string) error {
	if dbName == "" {
		return nil
	}
	admin, err := Open(config.AdminDSN(dsn), 0)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(admin, "admin db")
	_, err = admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	return err
}

func digestRows(rendered []string) string {
	sorted := append([]string(nil), rendered...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, row := range sorted {
		h.Write([]byte(row))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
