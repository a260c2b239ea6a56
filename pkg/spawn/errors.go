package spawn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PluginName tags every PipelineError raised by this package.
const PluginName = "go-spawn"

// ErrConfig is returned when a stage is built with invalid options.
var ErrConfig = errors.New("invalid spawn configuration")

// Kind is the reason a subprocess failed.
type Kind int

const (
	// KindSpawn means the subprocess could not be launched.
	KindSpawn Kind = iota
	// KindStderr means the subprocess wrote to its standard error.
	KindStderr
	// KindExit means the subprocess exited with a non-zero code.
	KindExit
	// KindTemplate means the command arguments could not be rendered for an item.
	KindTemplate
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindStderr:
		return "stderr"
	case KindExit:
		return "exit"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// PipelineError describes a failed subprocess.
type PipelineError struct {
	Plugin   string
	Kind     Kind
	Message  string
	Command  string
	Args     []string
	ExitCode int
}

func (e *PipelineError) Error() string {
	return e.Plugin + ": " + e.Message
}

func newPipelineError(kind Kind, spec Spec, code int, msg string) *PipelineError {
	return &PipelineError{
		Plugin:   PluginName,
		Kind:     kind,
		Message:  msg,
		Command:  spec.Command,
		Args:     spec.Args,
		ExitCode: code,
	}
}

func exitError(spec Spec, code int) *PipelineError {
	return newPipelineError(KindExit, spec, code,
		fmt.Sprintf("Command exited with code %d\nCommand: %s", code, commandLine(spec.Command, spec.Args)))
}

func stderrError(spec Spec, code int, text string) *PipelineError {
	return newPipelineError(KindStderr, spec, code, strings.TrimRight(text, " \t\r\n"))
}

// commandLine renders a command with every argument quoted.
func commandLine(command string, args []string) string {
	var b strings.Builder

	b.WriteString(command)

	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(arg))
	}

	return b.String()
}
