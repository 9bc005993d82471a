package manage

import (
	"context"
	"errors"
	"testing"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/dbconf"
	"github.com/scolaris/scolarisctl/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	calls []shell.Command
	err   error
}

func (r *recordingRunner) Run(ctx context.Context, cmd shell.Command) (shell.Output, error) {
	r.calls = append(r.calls, cmd)
	return shell.Output{}, r.err
}

func newRunner(t *testing.T, rec *recordingRunner) (*Runner, *dbconf.Connections) {
	t.Helper()
	cfg := config.Default()
	conns := dbconf.New(dbconf.FromProvider("postgresql", "postgres://db/scolaris"))
	return New(cfg, conns, rec), conns
}

func TestDumpDataArgs(t *testing.T) {
	rec := &recordingRunner{}
	r, _ := newRunner(t, rec)

	require.NoError(t, r.DumpData(context.Background(), "temp_data.json", []string{"contenttypes", "auth.Permission"}))
	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	assert.Equal(t, "python", call.Name)
	assert.Equal(t, []string{
		"manage.py", "dumpdata",
		"--exclude", "contenttypes", "--exclude", "auth.Permission",
		"--indent", "2", "-o", "temp_data.json",
	}, call.Args)
	assert.Contains(t, call.Env, "DJANGO_SETTINGS_MODULE=scolaris.settings")
	assert.Contains(t, call.Env, "DATABASE_URL=postgres://db/scolaris")
}

func TestRunUsesOverriddenSettings(t *testing.T) {
	rec := &recordingRunner{}
	r, conns := newRunner(t, rec)

	err := conns.Override(context.Background(), dbconf.SQLite("db.sqlite3"), func(ctx context.Context) error {
		return r.LoadData(ctx, "fixture.json")
	})
	require.NoError(t, err)
	assert.Contains(t, rec.calls[0].Env, "DATABASE_URL=sqlite:///db.sqlite3")
	assert.Equal(t, []string{"manage.py", "loaddata", "fixture.json"}, rec.calls[0].Args)
}

func TestMigrateStopsOnFailure(t *testing.T) {
	rec := &recordingRunner{err: &shell.CommandError{Cmd: "python manage.py makemigrations", ExitCode: 1}}
	r, _ := newRunner(t, rec)

	err := r.Migrate(context.Background())
	var cmdErr *shell.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Len(t, rec.calls, 1)
	assert.Contains(t, err.Error(), "manage.py makemigrations")
}

func TestPopulateAndCollectStatic(t *testing.T) {
	rec := &recordingRunner{}
	r, _ := newRunner(t, rec)

	require.NoError(t, r.Populate(context.Background()))
	require.NoError(t, r.CollectStatic(context.Background()))
	assert.Equal(t, []string{"manage.py", "populate_school_data", "--confirm"}, rec.calls[0].Args)
	assert.Equal(t, []string{"manage.py", "collectstatic", "--noinput"}, rec.calls[1].Args)
}
