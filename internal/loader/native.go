package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/sirupsen/logrus"
)

// Schema describes the target tables.
type Schema interface {
	ColumnTypes(ctx context.Context, table string) (map[string]string, error)
	PrimaryKey(ctx context.Context, table string) (string, error)
}

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NativeLoader inserts fixture records straight into PostgreSQL, in a
// single transaction with constraint checks deferred to the commit.
type NativeLoader struct {
	db     TxBeginner
	schema Schema
	qb     squirrel.StatementBuilderType
	tables map[string]*tableInfo
}

func NewNativeLoader(db TxBeginner, schema Schema) *NativeLoader {
	return &NativeLoader{
		db:     db,
		schema: schema,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		tables: make(map[string]*tableInfo),
	}
}

type tableInfo struct {
	name    string
	pk      string
	columns map[string]string
}

func (l *NativeLoader) Load(ctx context.Context, path string) (Result, error) {
	if err := requireFile(path); err != nil {
		return Result{}, err
	}
	records, err := fixture.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		return Result{}, fmt.Errorf("failed to defer constraints: %w", err)
	}

	var result Result
	skipped := make(map[string]bool)
	for i, rec := range records {
		info, err := l.table(ctx, fixture.TableName(rec.Model))
		if err != nil {
			return result, fmt.Errorf("record %d (%s): %w", i, rec.Model, err)
		}

		columns, values, dropped, err := info.row(rec)
		if err != nil {
			return result, fmt.Errorf("record %d (%s pk=%v): %w", i, rec.Model, rec.PK, err)
		}
		for _, f := range dropped {
			key := rec.Model + "." + f
			if !skipped[key] {
				skipped[key] = true
				result.Skipped = append(result.Skipped, key)
				logrus.WithField("field", key).Warn("field not imported")
			}
		}

		quoted := make([]string, len(columns))
		for j, c := range columns {
			quoted[j] = pq.QuoteIdentifier(c)
		}
		query, args, err := l.qb.Insert(pq.QuoteIdentifier(info.name)).Columns(quoted...).Values(values...).ToSql()
		if err != nil {
			return result, err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return result, fmt.Errorf("record %d (%s pk=%v): %w", i, rec.Model, rec.PK, err)
		}
		result.Records++
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{Skipped: result.Skipped}, fmt.Errorf("failed to commit import: %w", err)
	}
	return result, nil
}

func (l *NativeLoader) table(ctx context.Context, name string) (*tableInfo, error) {
	if info, ok := l.tables[name]; ok {
		return info, nil
	}

	columns, err := l.schema.ColumnTypes(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found in target", name)
	}
	pk, err := l.schema.PrimaryKey(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &tableInfo{name: name, pk: pk, columns: columns}
	l.tables[name] = info
	return info, nil
}

// row maps a record onto the table columns. A field named x goes to column
// x, or to x_id for a foreign key. List values (many-to-many) and fields
// without a column are returned as dropped.
func (t *tableInfo) row(rec fixture.Record) (columns []string, values []any, dropped []string, err error) {
	if t.pk != "" && rec.PK != nil {
		v, err := convert(rec.PK, t.columns[t.pk])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("pk: %w", err)
		}
		columns = append(columns, t.pk)
		values = append(values, v)
	}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := rec.Fields[name]
		if _, isList := raw.([]any); isList {
			dropped = append(dropped, name)
			continue
		}

		column := name
		if _, ok := t.columns[column]; !ok {
			column = name + "_id"
			if _, ok := t.columns[column]; !ok {
				dropped = append(dropped, name)
				continue
			}
		}
		if column == t.pk && rec.PK != nil {
			continue
		}

		v, err := convert(raw, t.columns[column])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("field %s: %w", name, err)
		}
		columns = append(columns, column)
		values = append(values, v)
	}
	return columns, values, dropped, nil
}

// convert turns a decoded JSON value into the Go value for a column of the
// given information_schema data type.
func convert(v any, dataType string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if dataType == "boolean" {
			n, err := x.Int64()
			if err != nil {
				return nil, fmt.Errorf("invalid boolean %s", x)
			}
			return n != 0, nil
		}
		if n, err := x.Int64(); err == nil {
			if isFloatType(dataType) {
				return float64(n), nil
			}
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", x)
		}
		return f, nil
	case bool:
		return x, nil
	case string:
		if dataType == "boolean" {
			switch strings.ToLower(x) {
			case "1", "true", "t":
				return true, nil
			case "0", "false", "f":
				return false, nil
			}
			return nil, fmt.Errorf("invalid boolean %q", x)
		}
		return x, nil
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func isFloatType(dataType string) bool {
	switch dataType {
	case "real", "double precision", "numeric":
		return true
	}
	return false
}
