// Package manage drives the Django project's manage.py commands.
package manage

import (
	"context"
	"fmt"
	"io"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/dbconf"
	"github.com/scolaris/scolarisctl/internal/shell"
)

// Runner invokes manage.py with the active database settings exported to
// the subprocess environment.
type Runner struct {
	python         string
	managePy       string
	settingsModule string
	dir            string
	urlEnv         string
	conns          *dbconf.Connections
	runner         shell.Runner

	// Stdout and Stderr, when set, receive the command output live.
	Stdout io.Writer
	Stderr io.Writer
}

func New(cfg *config.Config, conns *dbconf.Connections, runner shell.Runner) *Runner {
	if runner == nil {
		runner = shell.ExecRunner{}
	}
	return &Runner{
		python:         cfg.Django.Python,
		managePy:       cfg.Django.ManagePy,
		settingsModule: cfg.Django.SettingsModule,
		dir:            cfg.Django.Dir,
		urlEnv:         cfg.Database.URLEnv,
		conns:          conns,
		runner:         runner,
	}
}

// Run executes `python manage.py <args...>`.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	env := append([]string{"DJANGO_SETTINGS_MODULE=" + r.settingsModule}, r.conns.Env(r.urlEnv)...)
	_, err := r.runner.Run(ctx, shell.Command{
		Name:   r.python,
		Args:   append([]string{r.managePy}, args...),
		Dir:    r.dir,
		Env:    env,
		Stdout: r.Stdout,
		Stderr: r.Stderr,
	})
	if err != nil {
		return fmt.Errorf("manage.py %s: %w", args[0], err)
	}
	return nil
}

// DumpData serialises the active database into a fixture file.
func (r *Runner) DumpData(ctx context.Context, output string, exclude []string) error {
	args := []string{"dumpdata"}
	for _, e := range exclude {
		args = append(args, "--exclude", e)
	}
	args = append(args, "--indent", "2", "-o", output)
	return r.Run(ctx, args...)
}

// LoadData loads a fixture file into the active database.
func (r *Runner) LoadData(ctx context.Context, fixture string) error {
	return r.Run(ctx, "loaddata", fixture)
}

// Migrate creates then applies the project migrations.
func (r *Runner) Migrate(ctx context.Context) error {
	if err := r.Run(ctx, "makemigrations"); err != nil {
		return err
	}
	return r.Run(ctx, "migrate")
}

func (r *Runner) CollectStatic(ctx context.Context) error {
	return r.Run(ctx, "collectstatic", "--noinput")
}

// Populate runs the school data population command.
func (r *Runner) Populate(ctx context.Context) error {
	return r.Run(ctx, "populate_school_data", "--confirm")
}
