package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/mailer"
	"github.com/spf13/cobra"
)

var emailTo string

var emailTestCmd = &cobra.Command{
	Use:   "email-test",
	Short: "Send a test email with the configured backend",
	Long: `Print the email configuration read from the environment (EMAIL_HOST,
EMAIL_PORT, EMAIL_HOST_USER, ...) and send a test message.

Examples:
  scolarisctl email-test
  scolarisctl email-test --to admin@ecole.example`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		email := cfg.Email
		if err := email.Validate(); err != nil {
			return err
		}

		color.Cyan("🧪 Test de la configuration email...")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Printf("📧 Backend Email : %s\n", email.Backend)
		fmt.Printf("🏠 Serveur SMTP : %s:%d\n", email.Host, email.Port)
		fmt.Printf("👤 Utilisateur : %s\n", email.User)
		fmt.Printf("🔒 SSL activé : %t\n", email.UseSSL)
		fmt.Printf("📤 Email expéditeur : %s\n", email.From)

		to := strings.TrimSpace(emailTo)
		if to == "" {
			fmt.Print("\n✉️  Entrez votre email pour recevoir un test : ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read recipient: %w", err)
			}
			to = strings.TrimSpace(line)
		}
		if to == "" {
			color.Red("❌ Email requis pour le test.")
			return nil
		}

		sender, err := mailer.New(email, os.Stdout)
		if err == nil {
			fmt.Printf("\n📤 Envoi de l'email de test à %s...\n", to)
			err = sender.Send(cmd.Context(), mailer.NewTestMessage(email, to, time.Now()))
		}
		if err != nil {
			color.Red("❌ Erreur lors de l'envoi : %v", err)
			fmt.Println()
			color.Yellow("💡 Vérifications à faire :")
			for i, check := range mailer.Troubleshooting {
				fmt.Printf("   %d. %s\n", i+1, check)
			}
			return err
		}

		color.Green("✅ Email de test envoyé avec succès !")
		fmt.Println("📬 Vérifiez votre boîte de réception (et les spams).")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(emailTestCmd)

	emailTestCmd.Flags().StringVar(&emailTo, "to", "", "Recipient of the test email (prompted when empty)")
}
