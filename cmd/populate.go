package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var populateConfirm bool

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Fill the database with school data",
	Long: `Run the populate_school_data management command, which creates
classes, subjects, teachers, students and their records.

Nothing happens without --confirm.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !populateConfirm {
			color.Yellow("Attention: Cette commande va créer de nombreuses données dans votre base de données.")
			fmt.Println("Utilisez --confirm pour confirmer.")
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		conns := newConnections(cfg)
		defer conns.CloseAll()

		color.Cyan("🌱 Création des données de l'école...")
		if err := newManage(cfg, conns).Populate(cmd.Context()); err != nil {
			color.Red("❌ Erreur lors de la création des données : %v", err)
			return err
		}
		color.Green("✅ Données créées avec succès")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(populateCmd)

	populateCmd.Flags().BoolVar(&populateConfirm, "confirm", false, "Confirm the data population")
}
