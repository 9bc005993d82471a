package export

import (
	"context"
	"fmt"
	"os"

	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/scolaris/scolarisctl/internal/dbconf"
	"github.com/scolaris/scolarisctl/internal/fixture"
)

// DataDumper runs the framework's serialisation command against the active
// database.
type DataDumper interface {
	DumpData(ctx context.Context, output string, exclude []string) error
}

// Dumper exports the SQLite source through dumpdata by temporarily pointing
// the active configuration at the SQLite file.
type Dumper struct {
	conns   *dbconf.Connections
	dumper  DataDumper
	source  string
	exclude []string
}

func NewDumper(conns *dbconf.Connections, dumper DataDumper, source string, exclude []string) *Dumper {
	return &Dumper{conns: conns, dumper: dumper, source: source, exclude: exclude}
}

// Dump writes the fixture to output. The active configuration is the same
// before and after the call whatever the outcome.
func (d *Dumper) Dump(ctx context.Context, output string) error {
	if _, err := os.Stat(d.source); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", sqlite.ErrSourceMissing, d.source)
		}
		return err
	}

	err := d.conns.Override(ctx, dbconf.SQLite(d.source), func(ctx context.Context) error {
		return d.dumper.DumpData(ctx, output, d.exclude)
	})
	if err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("export file not written: %w", err)
	}
	if info.Size() == 0 {
		return fixture.ErrEmptyExport
	}
	return nil
}

func (d *Dumper) ExportTo(ctx context.Context, output string) error {
	return d.Dump(ctx, output)
}
