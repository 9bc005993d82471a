package shell

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cmd, err := Parse(`npm run "build:css"`)
	require.NoError(t, err)
	assert.Equal(t, "npm", cmd.Name)
	assert.Equal(t, []string{"run", "build:css"}, cmd.Args)
	assert.Equal(t, "npm run build:css", cmd.String())

	_, err = Parse("   ")
	require.Error(t, err)
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx := context.Background()
	var streamed bytes.Buffer

	out, err := ExecRunner{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo bonjour"}, Stdout: &streamed})
	require.NoError(t, err)
	assert.Equal(t, "bonjour\n", out.Stdout)
	assert.Equal(t, "bonjour\n", streamed.String())

	out, err = ExecRunner{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.Equal(t, "oops\n", cmdErr.Output.Stderr)

	_, err = ExecRunner{}.Run(ctx, Command{Name: "scolaris-no-such-tool"})
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestExecRunnerEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$DATABASE_URL\""},
		Env:  []string{"DATABASE_URL=sqlite:///db.sqlite3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///db.sqlite3", out.Stdout)
}
