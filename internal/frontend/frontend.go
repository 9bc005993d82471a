// Package frontend builds the Tailwind stylesheet and deploys the static
// files of the Django project.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/shell"
)

// ErrFileMissing is returned when a required project file is absent.
var ErrFileMissing = errors.New("required file not found")

// Builder runs the npm toolchain in the project directory.
type Builder struct {
	runner shell.Runner
	cfg    config.Frontend
	dir    string

	// Stdout and Stderr, when set, receive the npm output live.
	Stdout io.Writer
	Stderr io.Writer
}

func NewBuilder(cfg config.Frontend, dir string, runner shell.Runner) *Builder {
	if runner == nil {
		runner = shell.ExecRunner{}
	}
	return &Builder{runner: runner, cfg: cfg, dir: dir}
}

func (b *Builder) path(p string) string {
	if filepath.IsAbs(p) || b.dir == "" {
		return p
	}
	return filepath.Join(b.dir, p)
}

// CheckTools makes sure node and npm can be run and returns their versions.
func (b *Builder) CheckTools(ctx context.Context) (map[string]string, error) {
	versions := make(map[string]string, 2)
	for _, tool := range []string{"node", "npm"} {
		out, err := b.runner.Run(ctx, shell.Command{Name: tool, Args: []string{"--version"}, Dir: b.dir})
		if err != nil {
			color.Red("❌ Node.js ou npm n'est pas installé")
			color.Cyan("🔗 Installez Node.js depuis: https://nodejs.org/")
			if errors.Is(err, shell.ErrToolMissing) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s (%v)", shell.ErrToolMissing, tool, err)
		}
		versions[tool] = strings.TrimSpace(out.Stdout)
	}
	return versions, nil
}

// CheckFiles verifies the files the CSS build depends on.
func (b *Builder) CheckFiles() error {
	color.Cyan("🔍 Vérification des fichiers...")
	for _, f := range b.cfg.RequiredFiles {
		if _, err := os.Stat(b.path(f)); err != nil {
			color.Red("❌ Fichier manquant: %s", f)
			return fmt.Errorf("%w: %s", ErrFileMissing, f)
		}
		color.Green("✅ Trouvé: %s", f)
	}
	return nil
}

// run executes one configured command line, reporting it under desc.
func (b *Builder) run(ctx context.Context, line, desc string) error {
	cmd, err := shell.Parse(line)
	if err != nil {
		return err
	}
	cmd.Dir = b.dir
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	color.Cyan("🔄 %s...", desc)
	if _, err := b.runner.Run(ctx, cmd); err != nil {
		color.Red("❌ %s - Erreur:", desc)
		fmt.Printf("   Commande: %s\n", line)
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			fmt.Printf("   Code de sortie: %d\n", cmdErr.ExitCode)
			if cmdErr.Output.Stderr != "" && b.Stderr == nil {
				fmt.Printf("   Erreur: %s\n", cmdErr.Output.Stderr)
			}
		}
		return err
	}
	color.Green("✅ %s - Succès", desc)
	return nil
}

func (b *Builder) Install(ctx context.Context) error {
	return b.run(ctx, b.cfg.Install, "Installation des dépendances npm")
}

// Build compiles the stylesheet. The output file is not checked here.
func (b *Builder) Build(ctx context.Context) error {
	return b.run(ctx, b.cfg.Build, "Compilation du CSS Tailwind")
}

// OutputSize returns the size of the compiled stylesheet.
func (b *Builder) OutputSize() (int64, error) {
	info, err := os.Stat(b.path(b.cfg.CSSOutput))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Clean removes the build artifacts and the dependency cache.
func (b *Builder) Clean() ([]string, error) {
	color.Cyan("🧹 Nettoyage des fichiers temporaires...")
	var removed []string
	for _, p := range b.cfg.CleanPaths {
		full := b.path(p)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		if err := os.RemoveAll(full); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", p, err)
		}
		if info.IsDir() {
			color.Yellow("🗑️  Dossier supprimé: %s", p)
		} else {
			color.Yellow("🗑️  Fichier supprimé: %s", p)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// BuildCSS checks the toolchain, installs the dependencies and compiles the
// stylesheet.
func (b *Builder) BuildCSS(ctx context.Context) error {
	if _, err := b.CheckTools(ctx); err != nil {
		return err
	}
	if err := b.Install(ctx); err != nil {
		return err
	}
	if err := b.Build(ctx); err != nil {
		return err
	}

	color.Green("✅ CSS construit avec succès!")
	color.Cyan("📁 Fichier généré: %s", b.cfg.CSSOutput)
	if size, err := b.OutputSize(); err == nil {
		color.Cyan("📊 Taille du fichier CSS: %s", humanize.Bytes(uint64(size)))
	}
	return nil
}

// StaticCollector gathers the Django static files.
type StaticCollector interface {
	CollectStatic(ctx context.Context) error
}

type DeployOptions struct {
	Clean   bool
	OnlyCSS bool
}

// Deploy compiles the stylesheet and, unless OnlyCSS is set, collects the
// static files.
func (b *Builder) Deploy(ctx context.Context, collector StaticCollector, opts DeployOptions) error {
	if opts.Clean {
		if _, err := b.Clean(); err != nil {
			return err
		}
	}

	color.Cyan("🚀 Début du déploiement EduManager")
	if err := b.CheckFiles(); err != nil {
		color.Red("❌ Vérification des fichiers échouée")
		return err
	}
	if err := b.Install(ctx); err != nil {
		return err
	}
	if err := b.Build(ctx); err != nil {
		return err
	}
	if opts.OnlyCSS {
		return nil
	}

	size, err := b.OutputSize()
	if err != nil {
		color.Red("❌ CSS non généré: %s", b.cfg.CSSOutput)
		return fmt.Errorf("%w: %s", ErrFileMissing, b.cfg.CSSOutput)
	}
	color.Green("✅ CSS généré: %s (%s)", b.cfg.CSSOutput, humanize.Bytes(uint64(size)))

	color.Cyan("🔄 Collecte des fichiers statiques...")
	if err := collector.CollectStatic(ctx); err != nil {
		color.Red("❌ Collecte des fichiers statiques - Erreur: %v", err)
		return err
	}
	color.Green("✅ Collecte des fichiers statiques - Succès")

	if info, err := os.Stat(b.path(b.cfg.StaticCSS)); err == nil {
		color.Green("✅ CSS dans staticfiles: %s (%s)", b.cfg.StaticCSS, humanize.Bytes(uint64(info.Size())))
	} else {
		color.Yellow("⚠️  CSS non trouvé dans staticfiles: %s", b.cfg.StaticCSS)
	}

	color.Green("🎉 Déploiement terminé avec succès!")
	return nil
}
