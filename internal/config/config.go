package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const DefaultConfigFile = "scolaris.config.json"

type Config struct {
	SourceDB  string   `json:"source_db" mapstructure:"source_db"`
	BackupDir string   `json:"backup_dir" mapstructure:"backup_dir"`
	Files     Files    `json:"files" mapstructure:"files"`
	Database  Database `json:"database" mapstructure:"database"`
	Django    Django   `json:"django" mapstructure:"django"`
	Export    Export   `json:"export" mapstructure:"export"`
	Clean     Clean    `json:"clean" mapstructure:"clean"`
	Import    Import   `json:"import" mapstructure:"import"`
	Verify    Verify   `json:"verify" mapstructure:"verify"`
	Frontend  Frontend `json:"frontend" mapstructure:"frontend"`
	Email     Email    `json:"email" mapstructure:"email"`
}

// Files are the intermediate fixture files of a migration run.
type Files struct {
	Export  string `json:"export" mapstructure:"export"`
	Cleaned string `json:"cleaned" mapstructure:"cleaned"`
	Direct  string `json:"direct" mapstructure:"direct"`
}

type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
}

type Django struct {
	Python         string `json:"python" mapstructure:"python"`
	ManagePy       string `json:"manage_py" mapstructure:"manage_py"`
	SettingsModule string `json:"settings_module" mapstructure:"settings_module"`
	Dir            string `json:"dir,omitempty" mapstructure:"dir"`
}

type Export struct {
	Mode    string   `json:"mode" mapstructure:"mode"` // orm or direct
	Tables  []string `json:"tables,omitempty" mapstructure:"tables"`
	Exclude []string `json:"exclude,omitempty" mapstructure:"exclude"`
}

type Clean struct {
	Encodings     []string `json:"encodings,omitempty" mapstructure:"encodings"`
	ExcludeModels []string `json:"exclude_models,omitempty" mapstructure:"exclude_models"`
}

type Import struct {
	Mode string `json:"mode" mapstructure:"mode"` // loaddata or native
}

type VerifyTable struct {
	Table string `json:"table" mapstructure:"table"`
	Label string `json:"label" mapstructure:"label"`
}

type Verify struct {
	Tables []VerifyTable `json:"tables,omitempty" mapstructure:"tables"`
}

type Frontend struct {
	RequiredFiles []string `json:"required_files,omitempty" mapstructure:"required_files"`
	Install       string   `json:"install" mapstructure:"install"`
	Build         string   `json:"build" mapstructure:"build"`
	CSSOutput     string   `json:"css_output" mapstructure:"css_output"`
	StaticCSS     string   `json:"static_css" mapstructure:"static_css"`
	CleanPaths    []string `json:"clean_paths,omitempty" mapstructure:"clean_paths"`
}

// Email mirrors the Django EMAIL_* settings. Values come from the
// environment unless the config file sets them.
type Email struct {
	Backend     string `json:"backend,omitempty" mapstructure:"backend"`
	Host        string `json:"host,omitempty" mapstructure:"host"`
	Port        int    `json:"port,omitempty" mapstructure:"port"`
	User        string `json:"user,omitempty" mapstructure:"user"`
	Password    string `json:"-" mapstructure:"password"`
	UseSSL      bool   `json:"use_ssl,omitempty" mapstructure:"use_ssl"`
	UseTLS      bool   `json:"use_tls,omitempty" mapstructure:"use_tls"`
	From        string `json:"from,omitempty" mapstructure:"from"`
	SendgridKey string `json:"-" mapstructure:"sendgrid_key"`
}

// DefaultExportTables is the allow-list of the direct SQLite export.
var DefaultExportTables = []string{
	"authentication_user",
	"classes_schoolclass",
	"students_student",
	"subjects_subject",
	"teachers_teacher",
	"teachers_teachingassignment",
	"classes_timetable",
	"classes_timetableslot",
	"subjects_subject_program",
	"subjects_learning_unit",
	"subjects_lesson",
	"notes_trimester",
	"notes_evaluation",
	"notes_bulletin",
	"notes_bulletinline",
	"notes_studentgrade",
	"finances_feestructure",
	"finances_feetranche",
	"finances_feediscount",
	"finances_moratorium",
	"finances_tranchepayment",
	"finances_paymentrefund",
	"finances_inscriptionpayment",
	"finances_extrafeetype",
	"finances_extrafee",
	"finances_extrafeepayment",
	"documents_documentcategory",
	"documents_documenttemplate",
	"documents_studentdocument",
	"students_scholarship",
	"students_sanction",
	"students_payment",
	"students_guardian",
	"students_studentdocument",
	"students_subject",
	"students_attendance",
	"students_studentclasshistory",
	"students_evaluation",
}

// DefaultVerifyTables are the five tables counted after a migration.
var DefaultVerifyTables = []VerifyTable{
	{Table: "classes_schoolclass", Label: "Classes"},
	{Table: "students_student", Label: "Élèves"},
	{Table: "subjects_subject", Label: "Matières"},
	{Table: "teachers_teacher", Label: "Enseignants"},
	{Table: "authentication_user", Label: "Utilisateurs"},
}

func Load() (*Config, error) {
	bindEmailEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func bindEmailEnv() {
	viper.BindEnv("email.backend", "EMAIL_BACKEND")
	viper.BindEnv("email.host", "EMAIL_HOST")
	viper.BindEnv("email.port", "EMAIL_PORT")
	viper.BindEnv("email.user", "EMAIL_HOST_USER")
	viper.BindEnv("email.password", "EMAIL_HOST_PASSWORD", "EMAIL_PASSWORD")
	viper.BindEnv("email.use_ssl", "EMAIL_USE_SSL")
	viper.BindEnv("email.use_tls", "EMAIL_USE_TLS")
	viper.BindEnv("email.from", "DEFAULT_FROM_EMAIL")
	viper.BindEnv("email.sendgrid_key", "SENDGRID_API_KEY")
	viper.BindEnv("django.settings_module", "DJANGO_SETTINGS_MODULE")
}

func (c *Config) applyDefaults() {
	if c.SourceDB == "" {
		c.SourceDB = "db.sqlite3"
	}
	if c.BackupDir == "" {
		c.BackupDir = "backup_sqlite"
	}
	if c.Files.Export == "" {
		c.Files.Export = "temp_data.json"
	}
	if c.Files.Cleaned == "" {
		c.Files.Cleaned = "temp_data_cleaned.json"
	}
	if c.Files.Direct == "" {
		c.Files.Direct = "temp_data_direct.json"
	}
	if c.Database.Provider == "" {
		c.Database.Provider = "postgresql"
	}
	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}
	if c.Django.Python == "" {
		c.Django.Python = "python"
	}
	if c.Django.ManagePy == "" {
		c.Django.ManagePy = "manage.py"
	}
	if c.Django.SettingsModule == "" {
		c.Django.SettingsModule = "scolaris.settings"
	}
	if c.Export.Mode == "" {
		c.Export.Mode = "orm"
	}
	if len(c.Export.Tables) == 0 {
		c.Export.Tables = append([]string(nil), DefaultExportTables...)
	}
	if len(c.Export.Exclude) == 0 {
		c.Export.Exclude = []string{"contenttypes", "auth.Permission"}
	}
	if len(c.Clean.Encodings) == 0 {
		c.Clean.Encodings = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1"}
	}
	if len(c.Clean.ExcludeModels) == 0 {
		c.Clean.ExcludeModels = []string{"contenttypes.contenttype", "auth.permission"}
	}
	if c.Import.Mode == "" {
		c.Import.Mode = "loaddata"
	}
	if len(c.Verify.Tables) == 0 {
		c.Verify.Tables = append([]VerifyTable(nil), DefaultVerifyTables...)
	}
	if len(c.Frontend.RequiredFiles) == 0 {
		c.Frontend.RequiredFiles = []string{"package.json", "tailwind.config.js", "static/src/input.css"}
	}
	if c.Frontend.Install == "" {
		c.Frontend.Install = "npm install"
	}
	if c.Frontend.Build == "" {
		c.Frontend.Build = "npm run build:css"
	}
	if c.Frontend.CSSOutput == "" {
		c.Frontend.CSSOutput = "static/src/dist/styles.css"
	}
	if c.Frontend.StaticCSS == "" {
		c.Frontend.StaticCSS = "staticfiles/src/dist/styles.css"
	}
	if len(c.Frontend.CleanPaths) == 0 {
		c.Frontend.CleanPaths = []string{"staticfiles", "static/src/dist/styles.css", "node_modules"}
	}
	c.Email.Backend = NormalizeEmailBackend(c.Email.Backend)
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.From == "" {
		c.Email.From = "noreply@localhost"
	}
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) Validate() error {
	supportedProviders := []string{"postgresql", "postgres", "mysql", "sqlite", "sqlite3"}
	if !contains(supportedProviders, c.Database.Provider) {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if !contains([]string{"orm", "direct"}, c.Export.Mode) {
		return fmt.Errorf("unsupported export mode: %s (expected orm or direct)", c.Export.Mode)
	}

	if !contains([]string{"loaddata", "native"}, c.Import.Mode) {
		return fmt.Errorf("unsupported import mode: %s (expected loaddata or native)", c.Import.Mode)
	}

	if c.Import.Mode == "native" && !c.IsPostgres() {
		return fmt.Errorf("native import requires a postgresql provider, got %s", c.Database.Provider)
	}

	if c.SourceDB == "" {
		return fmt.Errorf("source_db cannot be empty")
	}

	if c.BackupDir == "" {
		return fmt.Errorf("backup_dir cannot be empty")
	}

	return nil
}

// NormalizeEmailBackend reduces a Django EMAIL_BACKEND path such as
// django.core.mail.backends.smtp.EmailBackend to its short name. Empty
// means smtp.
func NormalizeEmailBackend(backend string) string {
	name := strings.ToLower(strings.TrimSpace(backend))
	switch {
	case name == "":
		return "smtp"
	case strings.Contains(name, "sendgrid"):
		return "sendgrid"
	}
	if _, rest, ok := strings.Cut(name, ".backends."); ok {
		name, _, _ = strings.Cut(rest, ".")
	}
	return name
}

// Validate checks the settings the email test needs. Other commands never
// look at them.
func (e Email) Validate() error {
	if !contains([]string{"smtp", "sendgrid", "console"}, e.Backend) {
		return fmt.Errorf("unsupported email backend: %s", e.Backend)
	}
	return nil
}

func (c *Config) IsPostgres() bool {
	return c.Database.Provider == "postgresql" || c.Database.Provider == "postgres"
}

// Write saves the configuration as indented JSON.
func (c *Config) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
