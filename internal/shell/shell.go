package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrToolMissing is returned when the executable is not on PATH.
var ErrToolMissing = errors.New("executable not found")

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
	// Stream forwards output to these writers in addition to capturing it.
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output is what a finished command printed.
type Output struct {
	Stdout string
	Stderr string
}

// CommandError reports a command that ran and exited non-zero.
type CommandError struct {
	Cmd      string
	ExitCode int
	Output   Output
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Cmd, e.ExitCode)
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return Output{}, fmt.Errorf("%w: %s", ErrToolMissing, c.Name)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	logrus.WithField("cmd", c.String()).Debug("running command")
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &CommandError{Cmd: c.String(), ExitCode: exitErr.ExitCode(), Output: out}
		}
		return out, fmt.Errorf("failed to execute %q: %w", c.String(), err)
	}
	return out, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// Parse splits a configured command line with shell quoting rules.
func Parse(line string) (Command, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("failed to parse command %q: %w", line, err)
	}
	if len(argv) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Name: argv[0], Args: argv[1:]}, nil
}
