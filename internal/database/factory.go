package database

import (
	"github.com/scolaris/scolarisctl/internal/database/mysql"
	"github.com/scolaris/scolarisctl/internal/database/postgres"
	"github.com/scolaris/scolarisctl/internal/database/sqlite"
)

func NewTarget(provider string) Target {
	switch provider {
	case "postgresql", "postgres":
		return postgres.New()
	case "mysql":
		return mysql.New()
	case "sqlite", "sqlite3":
		return sqlite.NewTarget()
	default:
		return postgres.New()
	}
}
