package database

import (
	"testing"

	"github.com/scolaris/scolarisctl/internal/database/mysql"
	"github.com/scolaris/scolarisctl/internal/database/postgres"
	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/stretchr/testify/assert"
)

func TestNewTarget(t *testing.T) {
	assert.IsType(t, &postgres.Adapter{}, NewTarget("postgresql"))
	assert.IsType(t, &postgres.Adapter{}, NewTarget("postgres"))
	assert.IsType(t, &mysql.Adapter{}, NewTarget("mysql"))
	assert.IsType(t, &sqlite.Adapter{}, NewTarget("sqlite3"))
	assert.IsType(t, &postgres.Adapter{}, NewTarget(""))
}
