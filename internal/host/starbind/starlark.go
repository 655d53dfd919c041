// Package starbind exposes a host.Leaker to Starlark scripts.
package starbind

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"leaker/internal/host"
)

const (
	leakerContextName = "leaker_context"
	mainFnName        = "main"
)

func init() {
	resolve.AllowNestedDef = true
	resolve.AllowLambda = true
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowBitwise = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Env is the environment scripts are evaluated in.
type Env struct {
	env starlark.StringDict
	doc map[string]string

	contextMu sync.Mutex
	thread    *starlark.Thread
	cancelfn  context.CancelFunc

	leaker *host.Leaker
	out    io.Writer
}

// New creates an environment whose builtins operate on l and whose print
// output goes to out.
func New(l *host.Leaker, out io.Writer) *Env {
	env := &Env{
		env:    starlark.StringDict{},
		doc:    map[string]string{},
		leaker: l,
		out:    out,
	}
	env.predeclare()
	return env
}

// Builtins returns the sorted names of all builtins.
func (env *Env) Builtins() []string {
	names := make([]string, 0, len(env.env))
	for name, v := range env.env {
		if _, ok := v.(*starlark.Builtin); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Docs renders the builtin reference as markdown.
func (env *Env) Docs() string {
	var sb strings.Builder
	sb.WriteString("# Builtins\n\n")
	sb.WriteString("Builtins that touch memory return `None` on failure; ")
	sb.WriteString("call `getlasterror()` and `geterrormessage(code)` for details.\n\n")
	for _, name := range env.Builtins() {
		sig, descr, _ := strings.Cut(env.doc[name], "\n\n")
		fmt.Fprintf(&sb, "## `%s`\n\n%s\n\n", sig, descr)
	}
	return sb.String()
}

// Execute runs a script. source may be nil, a string, []byte or
// io.Reader, as for starlark.ExecFile. If the script defines main() it is
// called afterwards and its result returned.
func (env *Env) Execute(path string, source any) (_ starlark.Value, _err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		_err = fmt.Errorf("panic executing starlark script: %v", r)
		fmt.Fprintf(env.out, "panic executing starlark script: %v\n", r)
		for i := 0; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fname := "<unknown>"
			if fn := runtime.FuncForPC(pc); fn != nil {
				fname = fn.Name()
			}
			fmt.Fprintf(env.out, "%s\n\tin %s:%d\n", fname, file, line)
		}
	}()

	thread := env.newThread()
	globals, err := starlark.ExecFile(thread, path, source, env.env)
	if err != nil {
		return starlark.None, err
	}
	env.exportGlobals(globals)
	return env.callMain(thread, globals)
}

// exportGlobals keeps globals whose name starts with a capital letter
// for later scripts and the REPL.
func (env *Env) exportGlobals(globals starlark.StringDict) {
	for name, val := range globals {
		if name[0] >= 'A' && name[0] <= 'Z' {
			env.env[name] = val
		}
	}
}

func (env *Env) callMain(thread *starlark.Thread, globals starlark.StringDict) (starlark.Value, error) {
	mainval := globals[mainFnName]
	if mainval == nil {
		return starlark.None, nil
	}
	mainfn, ok := mainval.(*starlark.Function)
	if !ok {
		return starlark.None, fmt.Errorf("%s is not a function", mainFnName)
	}
	if mainfn.NumParams() != 0 {
		return starlark.None, fmt.Errorf("%s must not take arguments", mainFnName)
	}
	return starlark.Call(thread, mainfn, nil, nil)
}

// Cancel stops the running script.
func (env *Env) Cancel() {
	if env == nil {
		return
	}
	env.contextMu.Lock()
	if env.cancelfn != nil {
		env.cancelfn()
		env.cancelfn = nil
	}
	if env.thread != nil {
		env.thread.Cancel("user interrupt")
	}
	env.contextMu.Unlock()
}

func (env *Env) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Name:  "leaker",
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(env.out, msg) },
	}
	env.contextMu.Lock()
	var ctx context.Context
	ctx, env.cancelfn = context.WithCancel(context.Background())
	env.thread = thread
	env.contextMu.Unlock()
	thread.SetLocal(leakerContextName, ctx)
	return thread
}

func isCancelled(thread *starlark.Thread) error {
	if ctx, ok := thread.Local(leakerContextName).(context.Context); ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func decorateError(thread *starlark.Thread, err error) error {
	if err == nil {
		return nil
	}
	pos := thread.CallFrame(1).Pos
	if pos.Col > 0 {
		return fmt.Errorf("%s:%d:%d: %v", pos.Filename(), pos.Line, pos.Col, err)
	}
	return fmt.Errorf("%s:%d: %v", pos.Filename(), pos.Line, err)
}
