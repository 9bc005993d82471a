package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const resetSchemaSQL = `DO $$
DECLARE r RECORD;
BEGIN
	FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = current_schema()) LOOP
		EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
	END LOOP;
END $$`

const sequenceColumnsSQL = `
	SELECT table_name, column_name
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	  AND (column_default LIKE 'nextval%' OR is_identity = 'YES')
	ORDER BY table_name, column_name`

// Adapter is the PostgreSQL migration target.
type Adapter struct {
	pool *pgxpool.Pool
	qb   squirrel.StatementBuilderType
}

func New() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (p *Adapter) Connect(ctx context.Context, url string) error {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnLifetime = 15 * time.Minute
	config.MaxConnIdleTime = 3 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	p.pool = pool
	return nil
}

func (p *Adapter) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Adapter) Version(ctx context.Context) (string, error) {
	var v string
	if err := p.pool.QueryRow(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// Begin starts the transaction used by the native fixture loader.
func (p *Adapter) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

func (p *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *Adapter) Count(ctx context.Context, table string) (int64, error) {
	if !validIdentifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name: %s", table)
	}

	query, args, err := p.qb.Select("COUNT(*)").From(pq.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ColumnTypes maps each column of table to its information_schema data
// type. An unknown table yields an empty map.
func (p *Adapter) ColumnTypes(ctx context.Context, table string) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		types[name] = dataType
	}
	return types, rows.Err()
}

// PrimaryKey returns the single-column primary key of table, or "" when
// there is none.
func (p *Adapter) PrimaryKey(ctx context.Context, table string) (string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT a.attname FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary`, pq.QuoteIdentifier(table))
	if err != nil {
		return "", err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", err
	}
	if len(names) != 1 {
		return "", nil
	}
	return names[0], nil
}

// ResetSchema drops every table of the current schema.
func (p *Adapter) ResetSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, resetSchemaSQL); err != nil {
		return fmt.Errorf("failed to reset schema: %w", err)
	}
	return nil
}

// FixSequences moves every serial or identity sequence past the highest
// imported key. Each sequence is independent; failures are joined.
func (p *Adapter) FixSequences(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, sequenceColumnsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}

	type seqColumn struct {
		Table  string
		Column string
	}
	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (seqColumn, error) {
		var c seqColumn
		err := row.Scan(&c.Table, &c.Column)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}

	var (
		fixed []string
		errs  []error
	)
	for _, c := range columns {
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence($1, $2), COALESCE(MAX(%s), 1), MAX(%s) IS NOT NULL) FROM %s",
			pq.QuoteIdentifier(c.Column), pq.QuoteIdentifier(c.Column), pq.QuoteIdentifier(c.Table))
		if _, err := p.pool.Exec(ctx, query, pq.QuoteIdentifier(c.Table), c.Column); err != nil {
			logrus.WithField("table", c.Table).WithError(err).Warn("sequence reset failed")
			errs = append(errs, fmt.Errorf("%s.%s: %w", c.Table, c.Column, err))
			continue
		}
		fixed = append(fixed, c.Table+"."+c.Column)
	}
	return fixed, errors.Join(errs...)
}
