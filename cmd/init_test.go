package cmd

import (
	"os"
	"testing"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/scolaris/scolarisctl/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeProject(t *testing.T) {
	chdirForTest(t, t.TempDir())

	require.NoError(t, initializeProject(template.MySQL, false))

	data, err := os.ReadFile(config.DefaultConfigFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"provider": "mysql"`)

	env, err := os.ReadFile(".env")
	require.NoError(t, err)
	assert.Contains(t, string(env), "DATABASE_URL=mysql://")

	err = initializeProject(template.MySQL, false)
	assert.ErrorContains(t, err, "already exists")
	require.NoError(t, initializeProject(template.SQLite, true))
}

func TestHandleEnvFileKeepsExistingEntries(t *testing.T) {
	chdirForTest(t, t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("DATABASE_URL=postgres://prod/scolaris"), 0644))

	require.NoError(t, handleEnvFile(template.NewProjectTemplate(template.PostgreSQL)))

	env, err := os.ReadFile(".env")
	require.NoError(t, err)
	assert.Contains(t, string(env), "DATABASE_URL=postgres://prod/scolaris\n\n# Added by scolarisctl\n")
	assert.NotContains(t, string(env), "username:password")
	assert.Contains(t, string(env), "EMAIL_PORT=587")
}

// chdirForTest changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+), which the local toolchain lacks.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(old)) })
}
