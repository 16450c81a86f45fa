// Package sandbox runs user strategy code in a yaegi interpreter restricted to a closed set of
// packages, under a hard wall-clock timeout.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"strings"
	"testing/fstest"
	"time"

	"golang-algo-trader/pkg/logger"

	"github.com/traefik/yaegi/interp"
)

// DefaultTimeout bounds a single strategy run.
const DefaultTimeout = 2 * time.Second

// ErrTimeout is wrapped by the Error returned when a run exceeds its timeout.
var ErrTimeout = errors.New("sandbox timeout")

// Error is the only error kind Execute returns. Message is safe to persist.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return "sandbox: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(stage string, err error) *Error {
	return &Error{Message: fmt.Sprintf("%s: %s", stage, firstLine(err.Error())), Err: err}
}

// firstLine keeps interpreter errors to their headline; frames belong in logs only.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Sandbox executes strategies. It holds no per-run state and is safe for concurrent use.
type Sandbox struct {
	timeout time.Duration
	logger  *logger.Logger
}

// New returns a sandbox with the given timeout, or DefaultTimeout when timeout is not positive.
func New(timeout time.Duration, log *logger.Logger) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{timeout: timeout, logger: log}
}

// Timeout returns the hard limit applied to each run.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

// Execute compiles code, calls its Run function and records emitted signals into local.
// local is closed when Execute returns, so a worker abandoned after a timeout cannot write to it.
func (s *Sandbox) Execute(ctx context.Context, code string, helpers Helpers, local *Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer local.close()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &Error{Message: fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- s.run(runCtx, code, helpers, local)
	}()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("Strategy exceeded timeout, abandoning worker", logger.Field("timeout", s.timeout.String()))
			return &Error{Message: fmt.Sprintf("execution exceeded %s", s.timeout), Err: ErrTimeout}
		}
		return &Error{Message: "execution cancelled", Err: runCtx.Err()}
	}
}

func (s *Sandbox) run(ctx context.Context, code string, helpers Helpers, local *Context) error {
	if err := checkSource(code); err != nil {
		return err
	}

	i := interp.New(interp.Options{
		GoPath:               "/nonexistent",
		SourcecodeFilesystem: fstest.MapFS{},
		Stdin:                strings.NewReader(""),
		Stdout:               io.Discard,
		Stderr:               io.Discard,
	})
	if err := i.Use(exports(helpers, local)); err != nil {
		return newError("load capabilities", err)
	}

	if _, err := i.EvalWithContext(ctx, code); err != nil {
		s.logger.Debug("Strategy failed to compile", logger.ErrorField(err))
		return newError("compile", err)
	}

	runValue, err := i.EvalWithContext(ctx, "main.Run")
	if err != nil {
		return newError("lookup", errors.New("strategy must define func Run()"))
	}
	if _, ok := runValue.Interface().(func()); !ok {
		return &Error{Message: "lookup: Run must have signature func()"}
	}

	// Calling through the interpreter lets cancellation stop the interpreted loop.
	if _, err := i.EvalWithContext(ctx, "main.Run()"); err != nil {
		return newError("run", err)
	}
	return nil
}

// checkSource parses the strategy and rejects go statements. A goroutine started by strategy code
// would outlive the run and the timeout.
func checkSource(code string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "strategy.go", code, parser.SkipObjectResolution)
	if err != nil {
		return newError("compile", err)
	}

	var spawn *ast.GoStmt
	ast.Inspect(file, func(n ast.Node) bool {
		if spawn != nil {
			return false
		}
		if g, ok := n.(*ast.GoStmt); ok {
			spawn = g
			return false
		}
		return true
	})
	if spawn != nil {
		return &Error{Message: fmt.Sprintf("compile: line %d: go statements are not allowed", fset.Position(spawn.Pos()).Line)}
	}
	return nil
}
