package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/database"
	"github.com/scolaris/scolarisctl/internal/database/postgres"
	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/scolaris/scolarisctl/internal/dbconf"
	"github.com/scolaris/scolarisctl/internal/export"
	"github.com/scolaris/scolarisctl/internal/loader"
	"github.com/scolaris/scolarisctl/internal/manage"
	"github.com/scolaris/scolarisctl/internal/migration"
	"github.com/scolaris/scolarisctl/internal/shell"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newConnections points the active configuration at the target database.
// Commands that never talk to the target still get a usable value.
func newConnections(cfg *config.Config) *dbconf.Connections {
	url, err := cfg.GetDatabaseURL()
	if err != nil {
		logrus.WithError(err).Debug("no target database configured")
	}
	return dbconf.New(dbconf.FromProvider(cfg.Database.Provider, url))
}

func newManage(cfg *config.Config, conns *dbconf.Connections) *manage.Runner {
	m := manage.New(cfg, conns, shell.ExecRunner{})
	m.Stdout = os.Stdout
	m.Stderr = os.Stderr
	return m
}

// openTarget connects to the configured target database. The caller closes
// it.
func openTarget(ctx context.Context, cfg *config.Config) (database.Target, error) {
	url, err := cfg.GetDatabaseURL()
	if err != nil {
		return nil, err
	}

	target := database.NewTarget(cfg.Database.Provider)
	if err := target.Connect(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logrus.WithField("provider", cfg.Database.Provider).Debug("target database opened")
	return target, nil
}

// openImportTarget opens the target only for the native importer. A
// loaddata import reaches the database through manage.py alone.
func openImportTarget(ctx context.Context, cfg *config.Config) (database.Target, error) {
	if cfg.Import.Mode != "native" {
		return nil, nil
	}
	return openTarget(ctx, cfg)
}

// openSource opens the SQLite source read-only and registers it so
// conns.CloseAll releases it.
func openSource(ctx context.Context, cfg *config.Config, conns *dbconf.Connections) (*sqlite.Adapter, error) {
	src := sqlite.New()
	if err := src.Connect(ctx, cfg.SourceDB); err != nil {
		return nil, err
	}
	conns.Register(src)
	logrus.WithField("file", cfg.SourceDB).Debug("sqlite source opened")
	return src, nil
}

// confirm asks a yes/no question unless --force was given.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if force, _ := cmd.Flags().GetBool("force"); force {
		return true, nil
	}

	color.Yellow("%s (oui/non): ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
		return true, nil
	}
	return false, nil
}

// newExporter returns the exporter selected by export.mode and the fixture
// file it writes.
func newExporter(ctx context.Context, cfg *config.Config, conns *dbconf.Connections, m *manage.Runner) (migration.Exporter, string, error) {
	if cfg.Export.Mode == "direct" {
		src, err := openSource(ctx, cfg, conns)
		if err != nil {
			return nil, "", err
		}
		return export.NewTableExporter(src, cfg.Export.Tables), cfg.Files.Direct, nil
	}
	return export.NewDumper(conns, m, cfg.SourceDB, cfg.Export.Exclude), cfg.Files.Export, nil
}

// newLoader returns the importer selected by import.mode. The native
// importer needs an open PostgreSQL target.
func newLoader(cfg *config.Config, m *manage.Runner, target database.Target) (loader.Loader, error) {
	if cfg.Import.Mode != "native" {
		return loader.NewManageLoader(m), nil
	}

	pg, ok := target.(*postgres.Adapter)
	if !ok {
		return nil, fmt.Errorf("native import requires a postgresql target, got %s", cfg.Database.Provider)
	}
	return loader.NewNativeLoader(pg, pg), nil
}
