// Package migration sequences the SQLite to PostgreSQL migration: backup,
// export, clean, import and verify, with the temporary files always
// removed at the end.
package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/backup"
	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/scolaris/scolarisctl/internal/loader"
	"github.com/scolaris/scolarisctl/internal/verify"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

const (
	StepConnect   = "connect"
	StepBackup    = "backup"
	StepReset     = "reset"
	StepSchema    = "schema"
	StepExport    = "export"
	StepClean     = "clean"
	StepImport    = "import"
	StepSequences = "sequences"
	StepVerify    = "verify"
	StepCleanup   = "cleanup"
)

type StepStatus string

const (
	StatusDone    StepStatus = "done"
	StatusSkipped StepStatus = "skipped"
	StatusFailed  StepStatus = "failed"
	StatusWarning StepStatus = "warning"
)

type StepResult struct {
	Name     string        `yaml:"name"`
	Status   StepStatus    `yaml:"status"`
	Detail   string        `yaml:"detail,omitempty"`
	Error    string        `yaml:"error,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

// Result is the outcome of one migration run.
type Result struct {
	State      State                `yaml:"state"`
	FailedStep string               `yaml:"failed_step,omitempty"`
	Err        error                `yaml:"-"`
	BackupPath string               `yaml:"backup,omitempty"`
	Clean      *fixture.CleanResult `yaml:"clean,omitempty"`
	Import     *loader.Result       `yaml:"import,omitempty"`
	Verify     *verify.Report       `yaml:"verify,omitempty"`
	Removed    []string             `yaml:"removed,omitempty"`
	Steps      []StepResult         `yaml:"steps"`
	StartedAt  time.Time            `yaml:"started_at"`
	FinishedAt time.Time            `yaml:"finished_at"`
}

// Succeeded reports whether the run reached SUCCESS.
func (r *Result) Succeeded() bool { return r.State == StateSuccess }

type Backuper interface {
	CreateBackup(src string) (string, error)
}

// Exporter writes the source database as a fixture file.
type Exporter interface {
	ExportTo(ctx context.Context, output string) error
}

type Cleaner interface {
	Clean(input, output string) (fixture.CleanResult, error)
}

type Verifier interface {
	Run(ctx context.Context) verify.Report
}

// Target is the part of the target database the run needs.
type Target interface {
	Version(ctx context.Context) (string, error)
	ResetSchema(ctx context.Context) error
	FixSequences(ctx context.Context) ([]string, error)
}

// SchemaBuilder recreates the schema on an empty target.
type SchemaBuilder interface {
	Migrate(ctx context.Context) error
}

type Options struct {
	// Reset drops the target tables and rebuilds the schema before the
	// import.
	Reset bool
	// Resume reuses an existing export file instead of exporting again.
	Resume bool
	// FixSequences realigns the target sequences after the import.
	FixSequences bool
}

type Files struct {
	Source  string
	Export  string
	Cleaned string
}

// Orchestrator runs the migration steps in order. Any failing step before
// Verify stops the run; Verify is advisory and Cleanup always runs.
// Imported data is never rolled back.
type Orchestrator struct {
	Files    Files
	Options  Options
	Backup   Backuper
	Export   Exporter
	Clean    Cleaner
	Import   loader.Loader
	Verify   Verifier
	Target   Target
	Schema   SchemaBuilder
	Removals func(paths []string) ([]string, error)
	Now      func() time.Time
}

type step struct {
	name string
	skip bool
	run  func(ctx context.Context, r *Result) (string, error)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes the migration. It never panics: a panic inside a step ends
// the run in FAILURE after Cleanup.
func (o *Orchestrator) Run(ctx context.Context) (result *Result) {
	result = &Result{StartedAt: o.now()}

	if o.Target != nil {
		started := o.now()
		version, err := o.Target.Version(ctx)
		if err != nil {
			color.Red("❌ Connexion à la base cible impossible : %v", err)
			o.fail(result, StepConnect, err, started)
			result.FinishedAt = o.now()
			return result
		}
		color.Green("✅ Connexion réussie : %s", version)
		o.done(result, StepConnect, version, started)
	}

	current := ""
	var started time.Time
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			color.Red("❌ Erreur critique : %v", rec)
			logrus.WithField("step", current).Errorf("step panicked: %v", rec)
			o.fail(result, current, err, started)
		}
		o.cleanup(result)
		result.FinishedAt = o.now()
	}()

	for _, s := range o.steps() {
		if s.skip {
			result.Steps = append(result.Steps, StepResult{Name: s.name, Status: StatusSkipped})
			continue
		}
		current, started = s.name, o.now()
		detail, err := s.run(ctx, result)
		if err != nil {
			color.Red("❌ Échec de l'étape %s : %v", s.name, err)
			o.fail(result, s.name, err, started)
			return result
		}
		o.done(result, s.name, detail, started)
	}

	o.verify(ctx, result)
	result.State = StateSuccess
	return result
}

func (o *Orchestrator) steps() []step {
	resume := false
	if o.Options.Resume {
		if info, err := os.Stat(o.Files.Export); err == nil && info.Size() > 0 {
			resume = true
		}
	}

	return []step{
		{name: StepBackup, run: o.backup},
		{name: StepReset, skip: !o.Options.Reset || o.Target == nil, run: o.reset},
		{name: StepSchema, skip: !o.Options.Reset || o.Schema == nil, run: o.schema},
		{name: StepExport, skip: resume, run: o.export},
		{name: StepClean, run: o.clean},
		{name: StepImport, run: o.importData},
		{name: StepSequences, skip: !o.Options.FixSequences || o.Target == nil, run: o.sequences},
	}
}

func (o *Orchestrator) backup(_ context.Context, r *Result) (string, error) {
	color.Cyan("🔄 Sauvegarde de la base SQLite...")
	path, err := o.Backup.CreateBackup(o.Files.Source)
	if err != nil {
		return "", err
	}
	r.BackupPath = path
	color.Green("✅ Sauvegarde créée : %s", path)
	return path, nil
}

func (o *Orchestrator) reset(ctx context.Context, _ *Result) (string, error) {
	color.Yellow("🗑️ Suppression des tables existantes...")
	if err := o.Target.ResetSchema(ctx); err != nil {
		return "", err
	}
	color.Green("✅ Base cible vidée")
	return "", nil
}

func (o *Orchestrator) schema(ctx context.Context, _ *Result) (string, error) {
	color.Cyan("🏗️ Création du schéma (migrations Django)...")
	if err := o.Schema.Migrate(ctx); err != nil {
		return "", err
	}
	color.Green("✅ Schéma créé")
	return "", nil
}

func (o *Orchestrator) export(ctx context.Context, _ *Result) (string, error) {
	color.Cyan("💾 Export des données depuis SQLite...")
	if err := o.Export.ExportTo(ctx, o.Files.Export); err != nil {
		return "", err
	}
	color.Green("✅ Données exportées : %s", o.Files.Export)
	return o.Files.Export, nil
}

func (o *Orchestrator) clean(_ context.Context, r *Result) (string, error) {
	color.Cyan("🧹 Nettoyage des données exportées...")
	res, err := o.Clean.Clean(o.Files.Export, o.Files.Cleaned)
	if err != nil {
		if errors.Is(err, fixture.ErrEmptyExport) {
			color.Red("❌ Le fichier d'export est vide")
		}
		return "", err
	}
	r.Clean = &res
	color.Green("✅ Encodage détecté : %s", res.Encoding)
	color.Cyan("📊 %d objets exportés", res.Total)
	color.Cyan("🧹 %d objets après nettoyage", res.Kept)
	return fmt.Sprintf("%d/%d records kept", res.Kept, res.Total), nil
}

func (o *Orchestrator) importData(ctx context.Context, r *Result) (string, error) {
	color.Cyan("📥 Import des données dans la base cible...")
	res, err := o.Import.Load(ctx, o.Files.Cleaned)
	if err != nil {
		return "", err
	}
	r.Import = &res
	color.Green("✅ Import terminé")
	if res.Records > 0 {
		return fmt.Sprintf("%d records", res.Records), nil
	}
	return "", nil
}

func (o *Orchestrator) sequences(ctx context.Context, _ *Result) (string, error) {
	color.Cyan("🔢 Mise à jour des séquences...")
	fixed, err := o.Target.FixSequences(ctx)
	if err != nil {
		return "", err
	}
	color.Green("✅ %d séquences mises à jour", len(fixed))
	return fmt.Sprintf("%d sequences", len(fixed)), nil
}

// verify is best-effort: a failure or a panic is recorded as a warning
// and the run still succeeds.
func (o *Orchestrator) verify(ctx context.Context, r *Result) {
	if o.Verify == nil {
		r.Steps = append(r.Steps, StepResult{Name: StepVerify, Status: StatusSkipped})
		return
	}

	started := o.now()
	defer func() {
		if rec := recover(); rec != nil {
			color.Yellow("⚠️ Vérification interrompue : %v", rec)
			r.Steps = append(r.Steps, StepResult{Name: StepVerify, Status: StatusWarning, Error: fmt.Sprint(rec), Duration: o.now().Sub(started)})
		}
	}()

	color.Cyan("🔍 Vérification de la migration...")
	report := o.Verify.Run(ctx)
	r.Verify = &report

	status, detail := StatusDone, ""
	if n := report.Failed(); n > 0 {
		status, detail = StatusWarning, fmt.Sprintf("%d tables not counted", n)
	}
	r.Steps = append(r.Steps, StepResult{Name: StepVerify, Status: status, Detail: detail, Duration: o.now().Sub(started)})
}

func (o *Orchestrator) cleanup(r *Result) {
	started := o.now()
	color.Cyan("🧹 Nettoyage des fichiers temporaires...")

	remove := o.Removals
	if remove == nil {
		remove = backup.RemoveFiles
	}
	removed, err := remove([]string{o.Files.Export, o.Files.Cleaned})
	for _, f := range removed {
		color.Yellow("🗑️ %s supprimé", f)
	}
	r.Removed = removed

	step := StepResult{Name: StepCleanup, Status: StatusDone, Duration: o.now().Sub(started)}
	if err != nil {
		color.Yellow("⚠️ Nettoyage incomplet : %v", err)
		step.Status, step.Error = StatusWarning, err.Error()
	}
	r.Steps = append(r.Steps, step)
}

func (o *Orchestrator) done(r *Result, name, detail string, started time.Time) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusDone, Detail: detail, Duration: o.now().Sub(started)})
}

func (o *Orchestrator) fail(r *Result, name string, err error, started time.Time) {
	r.State = StateFailure
	r.FailedStep = name
	r.Err = err
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusFailed, Error: err.Error(), Duration: o.now().Sub(started)})
}
