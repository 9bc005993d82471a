// Package export produces Django fixtures from the SQLite source database,
// either by reading the tables directly or through manage.py dumpdata.
package export

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusExported Status = "exported"
	StatusEmpty    Status = "empty"
	StatusMissing  Status = "missing"
	StatusFailed   Status = "failed"
)

// TableResult is the outcome of exporting one table.
type TableResult struct {
	Table  string `yaml:"table"`
	Status Status `yaml:"status"`
	Rows   int    `yaml:"rows"`
	Err    error  `yaml:"-"`
}

// Summary aggregates the per-table results of an export run.
type Summary struct {
	Tables  []TableResult
	Records int
}

func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Tables {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Failed lists the tables whose export raised an error.
func (s Summary) Failed() []TableResult {
	var failed []TableResult
	for _, r := range s.Tables {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Source is the read side of a SQLite database.
type Source interface {
	TableColumns(ctx context.Context, table string) ([]sqlite.Column, error)
	EachRow(ctx context.Context, table string, columns []sqlite.Column, fn func(values []any) error) error
}

// TableExporter rebuilds fixture records straight from the SQLite tables,
// without going through the Django ORM.
type TableExporter struct {
	src    Source
	tables []string
}

func NewTableExporter(src Source, tables []string) *TableExporter {
	return &TableExporter{src: src, tables: tables}
}

// Export reads every allowed table in order. A table that is absent or
// fails is recorded in the summary and the next table is still exported.
func (e *TableExporter) Export(ctx context.Context) ([]fixture.Record, Summary) {
	var (
		records []fixture.Record
		summary Summary
	)

	for _, table := range e.tables {
		if err := ctx.Err(); err != nil {
			summary.Tables = append(summary.Tables, TableResult{Table: table, Status: StatusFailed, Err: err})
			continue
		}

		rows, result := e.exportTable(ctx, table)
		summary.Tables = append(summary.Tables, result)

		switch result.Status {
		case StatusMissing:
			color.Yellow("⚠️ Table %s non trouvée, ignorée", table)
		case StatusFailed:
			color.Red("❌ Erreur pour la table %s: %v", table, result.Err)
			logrus.WithField("table", table).WithError(result.Err).Warn("table export failed")
		case StatusEmpty:
			color.Cyan("ℹ️ %s: 0 enregistrements", table)
		default:
			color.Green("✅ %s: %d enregistrements", table, result.Rows)
		}

		records = append(records, rows...)
	}

	summary.Records = len(records)
	return records, summary
}

// exportTable returns no records for a failed table, so a half-read table
// never reaches the fixture.
func (e *TableExporter) exportTable(ctx context.Context, table string) ([]fixture.Record, TableResult) {
	result := TableResult{Table: table}

	columns, err := e.src.TableColumns(ctx, table)
	if err != nil {
		result.Status, result.Err = StatusFailed, err
		return nil, result
	}
	if len(columns) == 0 {
		result.Status = StatusMissing
		return nil, result
	}

	var records []fixture.Record
	err = e.src.EachRow(ctx, table, columns, func(values []any) error {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v, err := sqlite.Coerce(col.Kind, values[i])
			if err != nil {
				return fmt.Errorf("column %s: %w", col.Name, err)
			}
			row[col.Name] = v
		}
		records = append(records, fixture.NewRecord(table, row))
		return nil
	})
	if err != nil {
		result.Status, result.Err = StatusFailed, err
		return nil, result
	}

	result.Rows = len(records)
	if result.Rows == 0 {
		result.Status = StatusEmpty
	} else {
		result.Status = StatusExported
	}
	return records, result
}

// ExportFile exports the tables and writes the records to path, even when
// some tables failed.
func (e *TableExporter) ExportFile(ctx context.Context, path string) (Summary, error) {
	records, summary := e.Export(ctx)
	if records == nil {
		records = []fixture.Record{}
	}
	if err := fixture.WriteFile(path, records); err != nil {
		return summary, err
	}
	return summary, nil
}

// ExportTo writes the direct export to output and prints its summary.
func (e *TableExporter) ExportTo(ctx context.Context, output string) error {
	summary, err := e.ExportFile(ctx, output)
	if err != nil {
		return err
	}
	color.Green("🎉 Export terminé : %d enregistrements dans %s", summary.Records, output)
	if failed := summary.Failed(); len(failed) > 0 {
		color.Yellow("⚠️ %d tables en erreur", len(failed))
	}
	return nil
}
