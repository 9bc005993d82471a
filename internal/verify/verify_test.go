package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts map[string]int64
	calls  []string
}

func (f *fakeCounter) Count(_ context.Context, table string) (int64, error) {
	f.calls = append(f.calls, table)
	n, ok := f.counts[table]
	if !ok {
		return 0, errors.New(`relation "` + table + `" does not exist`)
	}
	return n, nil
}

func TestRunCountsEveryTable(t *testing.T) {
	db := &fakeCounter{counts: map[string]int64{
		"classes_schoolclass": 12,
		"students_student":    340,
		"teachers_teacher":    25,
		"authentication_user": 31,
	}}

	report := New(db, config.DefaultVerifyTables).Run(context.Background())

	assert.Len(t, db.calls, 5)
	require.Len(t, report.Tables, 5)
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, "Classes", report.Tables[0].Label)
	assert.Equal(t, int64(12), report.Tables[0].Count)
	assert.Equal(t, int64(340), report.Tables[1].Count)

	subjects := report.Tables[2]
	assert.Equal(t, "subjects_subject", subjects.Table)
	assert.False(t, subjects.OK())
	assert.Contains(t, subjects.Error, "does not exist")

	assert.Equal(t, int64(25), report.Tables[3].Count)
	assert.Equal(t, int64(31), report.Tables[4].Count)
}

func TestLabelDefaultsToTable(t *testing.T) {
	db := &fakeCounter{counts: map[string]int64{"notes_bulletin": 0}}
	report := New(db, []config.VerifyTable{{Table: "notes_bulletin"}}).Run(context.Background())
	assert.Equal(t, "notes_bulletin", report.Tables[0].Label)
	assert.Zero(t, report.Failed())
}
