// Package loader imports a cleaned fixture into the target database.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrFileMissing is returned when the fixture to import does not exist.
var ErrFileMissing = errors.New("fixture file not found")

// Result describes one import. Records stays zero for a loaddata import,
// which does not report a count.
type Result struct {
	Records int      `yaml:"records"`
	Skipped []string `yaml:"skipped,omitempty"`
}

type Loader interface {
	Load(ctx context.Context, fixture string) (Result, error)
}

// DataLoader runs the framework's deserialisation command against the
// active database.
type DataLoader interface {
	LoadData(ctx context.Context, fixture string) error
}

// ManageLoader imports through manage.py loaddata.
type ManageLoader struct {
	manage DataLoader
}

func NewManageLoader(manage DataLoader) *ManageLoader {
	return &ManageLoader{manage: manage}
}

// Load runs loaddata once. A failure is returned as is, without retry.
func (l *ManageLoader) Load(ctx context.Context, fixture string) (Result, error) {
	if err := requireFile(fixture); err != nil {
		return Result{}, err
	}
	if err := l.manage.LoadData(ctx, fixture); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
