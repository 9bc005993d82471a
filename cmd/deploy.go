package cmd

import (
	"os"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/internal/frontend"
	"github.com/scolaris/scolarisctl/internal/shell"
	"github.com/spf13/cobra"
)

var (
	deployClean   bool
	deployOnlyCSS bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the CSS and collect the static files",
	Long: `Prepare the static assets for a deployment.

This command will:
1. Check package.json, tailwind.config.js and static/src/input.css
2. Install the npm dependencies and build the Tailwind stylesheet
3. Run manage.py collectstatic --noinput

Examples:
  scolarisctl deploy
  scolarisctl deploy --clean      # remove staticfiles, the CSS output and node_modules first
  scolarisctl deploy --only-css   # stop after the CSS build`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		conns := newConnections(cfg)
		defer conns.CloseAll()

		builder := newBuilder(cfg.Frontend, cfg.Django.Dir)
		return builder.Deploy(cmd.Context(), newManage(cfg, conns), frontend.DeployOptions{
			Clean:   deployClean,
			OnlyCSS: deployOnlyCSS,
		})
	},
}

var buildCSSCmd = &cobra.Command{
	Use:   "build-css",
	Short: "Build the Tailwind stylesheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return newBuilder(cfg.Frontend, cfg.Django.Dir).BuildCSS(cmd.Context())
	},
}

func newBuilder(cfg config.Frontend, dir string) *frontend.Builder {
	b := frontend.NewBuilder(cfg, dir, shell.ExecRunner{})
	b.Stdout = os.Stdout
	b.Stderr = os.Stderr
	return b
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(buildCSSCmd)

	deployCmd.Flags().BoolVar(&deployClean, "clean", false, "Remove previous build artifacts first")
	deployCmd.Flags().BoolVar(&deployOnlyCSS, "only-css", false, "Only build the CSS")
}
