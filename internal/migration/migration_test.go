package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/scolaris/scolarisctl/internal/loader"
	"github.com/scolaris/scolarisctl/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type calls []string

func (c *calls) add(name string) { *c = append(*c, name) }

type fakeBackup struct {
	log *calls
	err error
}

func (f fakeBackup) CreateBackup(src string) (string, error) {
	f.log.add("backup")
	if f.err != nil {
		return "", f.err
	}
	return "backup_sqlite/db_backup_20240902_070509.sqlite3", nil
}

type fakeExport struct {
	log *calls
	err error
}

func (f fakeExport) ExportTo(_ context.Context, output string) error {
	f.log.add("export")
	if err := os.WriteFile(output, []byte(`[{"model":"students.student","pk":1,"fields":{}}]`), 0644); err != nil {
		return err
	}
	return f.err
}

type fakeClean struct{ log *calls }

func (f fakeClean) Clean(input, output string) (fixture.CleanResult, error) {
	f.log.add("clean")
	data, err := os.ReadFile(input)
	if err != nil {
		return fixture.CleanResult{}, err
	}
	return fixture.CleanResult{Encoding: "utf-8", Total: 1, Kept: 1}, os.WriteFile(output, data, 0644)
}

type fakeImport struct {
	log    *calls
	err    error
	panics bool
}

func (f fakeImport) Load(context.Context, string) (loader.Result, error) {
	f.log.add("import")
	if f.panics {
		panic("connection reset by peer")
	}
	return loader.Result{Records: 1}, f.err
}

type fakeVerify struct {
	log    *calls
	report verify.Report
}

func (f fakeVerify) Run(context.Context) verify.Report {
	f.log.add("verify")
	return f.report
}

type fakeTarget struct {
	log        *calls
	versionErr error
}

func (f fakeTarget) Version(context.Context) (string, error) {
	f.log.add("connect")
	return "PostgreSQL 16.3", f.versionErr
}

func (f fakeTarget) ResetSchema(context.Context) error {
	f.log.add("reset")
	return nil
}

func (f fakeTarget) FixSequences(context.Context) ([]string, error) {
	f.log.add("sequences")
	return []string{"students_student.id"}, nil
}

type fakeSchema struct{ log *calls }

func (f fakeSchema) Migrate(context.Context) error {
	f.log.add("schema")
	return nil
}

func newOrchestrator(t *testing.T, log *calls) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	return &Orchestrator{
		Files: Files{
			Source:  filepath.Join(dir, "db.sqlite3"),
			Export:  filepath.Join(dir, "temp_data.json"),
			Cleaned: filepath.Join(dir, "temp_data_cleaned.json"),
		},
		Options: Options{FixSequences: true},
		Backup:  fakeBackup{log: log},
		Export:  fakeExport{log: log},
		Clean:   fakeClean{log: log},
		Import:  fakeImport{log: log},
		Verify:  fakeVerify{log: log},
		Target:  fakeTarget{log: log},
	}
}

func stepStatus(r *Result, name string) StepStatus {
	for _, s := range r.Steps {
		if s.Name == name {
			return s.Status
		}
	}
	return ""
}

func TestRunSuccess(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)

	result := o.Run(context.Background())

	assert.True(t, result.Succeeded())
	assert.Equal(t, calls{"connect", "backup", "export", "clean", "import", "sequences", "verify"}, log)
	assert.Equal(t, "backup_sqlite/db_backup_20240902_070509.sqlite3", result.BackupPath)
	assert.Equal(t, []string{o.Files.Export, o.Files.Cleaned}, result.Removed)
	assert.NoFileExists(t, o.Files.Export)
	assert.NoFileExists(t, o.Files.Cleaned)
	assert.Equal(t, StatusSkipped, stepStatus(result, StepReset))
	assert.Equal(t, StatusDone, stepStatus(result, StepCleanup))
	require.NotNil(t, result.Import)
	assert.Equal(t, 1, result.Import.Records)
}

func TestExportFailureStillCleansUp(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Export = fakeExport{log: &log, err: errors.New("manage.py dumpdata: exit status 1")}

	result := o.Run(context.Background())

	assert.Equal(t, StateFailure, result.State)
	assert.Equal(t, StepExport, result.FailedStep)
	assert.EqualError(t, result.Err, "manage.py dumpdata: exit status 1")
	assert.NotContains(t, log, "import")
	assert.NotContains(t, log, "verify")
	assert.Equal(t, StatusDone, stepStatus(result, StepCleanup))
	assert.Equal(t, []string{o.Files.Export}, result.Removed)
	assert.NoFileExists(t, o.Files.Export)
}

func TestBackupFailureStopsEverything(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Backup = fakeBackup{log: &log, err: errors.New("sqlite database not found")}

	result := o.Run(context.Background())

	assert.Equal(t, StepBackup, result.FailedStep)
	assert.Equal(t, calls{"connect", "backup"}, log)
	assert.Equal(t, StatusDone, stepStatus(result, StepCleanup))
}

func TestVerifyFailureDoesNotFailRun(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Verify = fakeVerify{log: &log, report: verify.Report{Tables: []verify.TableCount{
		{Table: "students_student", Label: "Élèves", Count: 340},
		{Table: "subjects_subject", Label: "Matières", Err: errors.New("relation does not exist")},
	}}}

	result := o.Run(context.Background())

	assert.True(t, result.Succeeded())
	assert.Equal(t, StatusWarning, stepStatus(result, StepVerify))
	require.NotNil(t, result.Verify)
	assert.Equal(t, 1, result.Verify.Failed())
}

func TestPanicIsReportedAsFailure(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Import = fakeImport{log: &log, panics: true}

	var result *Result
	require.NotPanics(t, func() { result = o.Run(context.Background()) })

	assert.Equal(t, StateFailure, result.State)
	assert.Equal(t, StepImport, result.FailedStep)
	assert.Contains(t, result.Err.Error(), "connection reset by peer")
	assert.NotContains(t, log, "verify")
	assert.NoFileExists(t, o.Files.Export)
	assert.NoFileExists(t, o.Files.Cleaned)
}

func TestConnectFailureTouchesNothing(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Target = fakeTarget{log: &log, versionErr: errors.New("connection refused")}
	require.NoError(t, os.WriteFile(o.Files.Export, []byte("[]"), 0644))

	result := o.Run(context.Background())

	assert.Equal(t, StepConnect, result.FailedStep)
	assert.Equal(t, calls{"connect"}, log)
	assert.FileExists(t, o.Files.Export)
	assert.Empty(t, result.Removed)
}

func TestResetAndResume(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	o.Schema = fakeSchema{log: &log}
	o.Options = Options{Reset: true, Resume: true}
	require.NoError(t, os.WriteFile(o.Files.Export, []byte(`[{"model":"a.b","pk":1,"fields":{}}]`), 0644))

	result := o.Run(context.Background())

	assert.True(t, result.Succeeded())
	assert.Equal(t, calls{"connect", "backup", "reset", "schema", "clean", "import", "verify"}, log)
	assert.Equal(t, StatusSkipped, stepStatus(result, StepExport))
	assert.Equal(t, StatusSkipped, stepStatus(result, StepSequences))
}

func TestWriteReport(t *testing.T) {
	var log calls
	o := newOrchestrator(t, &log)
	result := o.Run(context.Background())

	path := filepath.Join(t.TempDir(), "migration.yaml")
	require.NoError(t, result.WriteReport(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		State string `yaml:"state"`
		Steps []struct {
			Name   string `yaml:"name"`
			Status string `yaml:"status"`
		} `yaml:"steps"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "SUCCESS", decoded.State)
	assert.Equal(t, "connect", decoded.Steps[0].Name)
	assert.Equal(t, "cleanup", decoded.Steps[len(decoded.Steps)-1].Name)
}
