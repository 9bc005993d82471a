package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSourceMissing is returned when the SQLite file does not exist.
var ErrSourceMissing = errors.New("sqlite database not found")

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Adapter is a SQLite database. The migration source is opened read-only
// and never written to.
type Adapter struct {
	db       *sql.DB
	qb       squirrel.StatementBuilderType
	path     string
	readOnly bool
}

// New returns a read-only adapter for the migration source.
func New() *Adapter {
	return &Adapter{
		qb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		readOnly: true,
	}
}

// NewTarget returns a writable adapter, used when SQLite is the migration
// target.
func NewTarget() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Connect opens path. url may carry a sqlite:// prefix. A read-only
// adapter requires the file to exist.
func (s *Adapter) Connect(ctx context.Context, url string) error {
	path := strings.TrimPrefix(url, "sqlite://")
	if idx := strings.Index(path, "?"); idx > 0 {
		path = path[:idx]
	}

	mode := "rwc"
	if s.readOnly {
		mode = "ro"
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrSourceMissing, path)
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode="+mode+"&_foreign_keys=1")
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}

	s.db = db
	s.path = path
	return nil
}

func (s *Adapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Adapter) Version(ctx context.Context) (string, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", err
	}
	return "SQLite " + v, nil
}

func (s *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// TableColumns returns the schema snapshot of a table. A table that does
// not exist yields no columns and no error.
func (s *Adapter) TableColumns(ctx context.Context, table string) ([]Column, error) {
	if !validIdentifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+pq.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid       int
			name      string
			declType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:       name,
			DeclType:   declType,
			Kind:       ParseKind(declType),
			NotNull:    notNull == 1,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

// EachRow calls fn with the raw values of every row, in the column order
// of TableColumns.
func (s *Adapter) EachRow(ctx context.Context, table string, columns []Column, fn func(values []any) error) error {
	if !validIdentifier.MatchString(table) {
		return fmt.Errorf("invalid table name: %s", table)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.selectExpr()
	}

	query, args, err := s.qb.Select(names...).From(pq.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Adapter) Count(ctx context.Context, table string) (int64, error) {
	if !validIdentifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name: %s", table)
	}

	query, args, err := s.qb.Select("COUNT(*)").From(pq.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetSchema drops every table. It fails on a read-only adapter.
func (s *Adapter) ResetSchema(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("cannot reset read-only database %s", s.path)
	}

	tables, err := s.GetAllTableNames(ctx)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer s.db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON")

	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(t)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
	}
	return nil
}

// FixSequences is a no-op: SQLite derives the next rowid from the table.
func (s *Adapter) FixSequences(ctx context.Context) ([]string, error) {
	return nil, nil
}
