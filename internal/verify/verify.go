// Package verify counts the rows of a few key tables after a migration.
package verify

import (
	"context"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/database"
	"github.com/sirupsen/logrus"
)

// TableCount is the outcome of counting one table.
type TableCount struct {
	Table string `yaml:"table"`
	Label string `yaml:"label"`
	Count int64  `yaml:"count"`
	Err   error  `yaml:"-"`
	Error string `yaml:"error,omitempty"`
}

func (c TableCount) OK() bool { return c.Err == nil }

// Report aggregates the counts of one verification.
type Report struct {
	Tables []TableCount `yaml:"tables"`
}

// Failed returns the number of tables that could not be counted.
func (r Report) Failed() int {
	n := 0
	for _, t := range r.Tables {
		if !t.OK() {
			n++
		}
	}
	return n
}

type Verifier struct {
	db     database.Counter
	tables []config.VerifyTable
}

func New(db database.Counter, tables []config.VerifyTable) *Verifier {
	return &Verifier{db: db, tables: tables}
}

// Run counts every table independently. It has no side effects and never
// stops at a failing table.
func (v *Verifier) Run(ctx context.Context) Report {
	var report Report
	for _, t := range v.tables {
		result := TableCount{Table: t.Table, Label: t.Label}
		if result.Label == "" {
			result.Label = t.Table
		}

		n, err := v.db.Count(ctx, t.Table)
		if err != nil {
			result.Err = err
			result.Error = err.Error()
			color.Red("❌ Erreur pour %s: %v", result.Label, err)
			logrus.WithField("table", t.Table).WithError(err).Debug("count failed")
		} else {
			result.Count = n
			color.Cyan("📊 %s: %d", result.Label, n)
		}
		report.Tables = append(report.Tables, result)
	}
	return report
}
