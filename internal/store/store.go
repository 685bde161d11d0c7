// Package store executes model-generated SQL against the task database.
// MySQL is the production datastore; Postgres and SQLite are supported for
// alternative deployments and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/sqlsafe"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and addresses the database. DSN, when set, is used as-is.
type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DataSource returns the database/sql driver name and connection string.
func (c Config) DataSource() (string, string, error) {
	switch c.Driver {
	case DriverMySQL, "":
		if c.DSN != "" {
			return "mysql", c.DSN, nil
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(orDefault(c.Port, 3306)))
		mc.DBName = c.Name
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), nil
	case DriverPostgres:
		if c.DSN != "" {
			return "pgx", c.DSN, nil
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(orDefault(c.Port, 5432))),
			Path:   "/" + c.Name,
		}
		return "pgx", u.String(), nil
	case DriverSQLite:
		if c.DSN != "" {
			return "sqlite", c.DSN, nil
		}
		name := c.Name
		if name == "" {
			name = "stm.db"
		}
		return "sqlite", "file:" + name + "?_pragma=foreign_keys(1)", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Row is one result row keyed by column name.
type Row map[string]any

// Label names a row in a human-readable evidence list: its title, else its
// description, else "Task #<id>".
func (r Row) Label() string {
	for _, col := range []string{"title", "description"} {
		if s := text(r[col]); s != "" {
			return s
		}
	}
	return "Task #" + text(r["id"])
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Result is the outcome of one statement. Read-only statements fill
// Columns and Rows; everything else reports RowsAffected.
type Result struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
}

// Executor runs statements on a lazily opened connection pool. A pool that
// fails its ping is reopened before the next statement.
type Executor struct {
	kind   string
	driver string
	dsn    string
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// New creates an executor for cfg without connecting.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	driver, dsn, err := cfg.DataSource()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{kind: cfg.Driver, driver: driver, dsn: dsn, logger: logger}, nil
}

// NewWithDB wraps an existing pool opened for kind (one of the Driver
// constants). The executor cannot reopen it.
func NewWithDB(db *sql.DB, kind string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{kind: kind, db: db, logger: logger}
}

// Migrate applies the embedded schema on the executor's pool.
func (e *Executor) Migrate(ctx context.Context) ([]int64, error) {
	db, err := e.DB(ctx)
	if err != nil {
		return nil, err
	}
	return Migrate(ctx, db, e.kind, e.logger)
}

// DB returns a live pool, opening or reopening it when needed.
func (e *Executor) DB(ctx context.Context) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		err := e.db.PingContext(ctx)
		if err == nil {
			return e.db, nil
		}
		if e.dsn == "" {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		e.logger.Warn("database connection lost, reconnecting", slog.Any("error", err))
		e.db.Close()
		e.db = nil
	}
	if e.dsn == "" {
		return nil, errors.New("database is closed")
	}

	db, err := sql.Open(e.driver, e.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if e.driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	e.db = db
	return db, nil
}

// Execute runs one statement. Errors wrap ai.ErrSQLExecution.
func (e *Executor) Execute(ctx context.Context, stmt string) (Result, error) {
	start := time.Now()
	defer metrics.ObserveCall("database", start)

	res, err := e.execute(ctx, stmt)
	if err != nil {
		e.logger.Debug("sql failed", slog.String("sql", stmt), slog.Any("error", err))
		return Result{}, ai.NewError(ai.KindSQLExecution, "execute", err)
	}
	e.logger.Debug("sql executed",
		slog.String("sql", stmt),
		slog.Int("rows", len(res.Rows)),
		slog.Int64("affected", res.RowsAffected),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Executor) execute(ctx context.Context, stmt string) (Result, error) {
	db, err := e.DB(ctx)
	if err != nil {
		return Result{}, err
	}

	if !sqlsafe.IsReadOnly(stmt) {
		r, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return Result{}, err
		}
		n, err := r.RowsAffected()
		if err != nil {
			return Result{}, fmt.Errorf("rows affected: %w", err)
		}
		return Result{RowsAffected: n}, nil
	}

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}
	res := Result{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

// Close releases the pool.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.dsn = ""
	return err
}
