package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/template"
	"github.com/spf13/cobra"
)

var (
	sqliteFlag     bool
	postgresqlFlag bool
	mysqlFlag      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default scolarisctl configuration",
	Long: `Write scolaris.config.json with the default values and add the
variables the tooling reads (DATABASE_URL, EMAIL_*) to .env.

Existing .env entries are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType := template.PostgreSQL
		flagCount := 0

		if sqliteFlag {
			dbType = template.SQLite
			flagCount++
		}
		if postgresqlFlag {
			dbType = template.PostgreSQL
			flagCount++
		}
		if mysqlFlag {
			dbType = template.MySQL
			flagCount++
		}

		if flagCount > 1 {
			return fmt.Errorf("please specify only one database type (--sqlite, --postgresql, or --mysql)")
		}

		force, _ := cmd.Flags().GetBool("force")
		return initializeProject(dbType, force)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&sqliteFlag, "sqlite", false, "Target a SQLite database")
	initCmd.Flags().BoolVar(&postgresqlFlag, "postgresql", false, "Target a PostgreSQL database")
	initCmd.Flags().BoolVar(&mysqlFlag, "mysql", false, "Target a MySQL database")
}

func initializeProject(dbType template.DatabaseType, force bool) error {
	tmpl := template.NewProjectTemplate(dbType)

	configPath := config.DefaultConfigFile
	if cfgFile != "" {
		configPath = cfgFile
	}
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if err := tmpl.Config().Write(configPath); err != nil {
		return err
	}

	if err := handleEnvFile(tmpl); err != nil {
		return fmt.Errorf("failed to handle .env file: %w", err)
	}

	color.Green("✅ Configuration initialisée pour %s", dbType)
	fmt.Println()
	fmt.Println("📝 Fichiers créés :")
	fmt.Printf("   %s\n", configPath)
	fmt.Println("   .env")

	if _, err := os.Stat("manage.py"); os.IsNotExist(err) {
		fmt.Println()
		color.Yellow("⚠️  manage.py introuvable : lancez scolarisctl depuis la racine du projet Django")
	}

	fmt.Println()
	fmt.Println("🚀 Étapes suivantes :")
	fmt.Println("   scolarisctl check      # inspecter db.sqlite3")
	fmt.Println("   scolarisctl migrate    # migrer vers la base cible")
	fmt.Println("   scolarisctl email-test # tester l'envoi d'emails")
	return nil
}

func handleEnvFile(tmpl *template.ProjectTemplate) error {
	envPath := ".env"

	existingContent, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(envPath, []byte(tmpl.GetEnvTemplate()), 0644)
		}
		return err
	}

	missing := tmpl.MissingEnv(string(existingContent))
	if missing == "" {
		return nil
	}

	existingStr := string(existingContent)
	if len(existingStr) > 0 && !strings.HasSuffix(existingStr, "\n") {
		existingStr += "\n"
	}
	existingStr += "\n# Added by scolarisctl\n" + missing

	return os.WriteFile(envPath, []byte(existingStr), 0644)
}
