package starbind

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	normalPrompt = ">>> "
	extraPrompt  = "... "

	exitCommand = "exit"
)

// REPL runs a read, eval, print loop until EOF or "exit". History is read
// from and saved to historyPath when it is not empty.
func (env *Env) REPL(historyPath string) error {
	thread := env.newThread()
	globals := starlark.StringDict{}
	for k, v := range env.env {
		globals[k] = v
	}

	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)
	rl.SetCompleter(env.completer(globals))

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			rl.ReadHistory(f)
			f.Close()
		}
		defer func() {
			f, err := os.Create(historyPath)
			if err != nil {
				slog.Warn("repl: history not saved", "path", historyPath, "err", err)
				return
			}
			rl.WriteHistory(f)
			f.Close()
		}()
	}

	fmt.Fprintln(env.out, "Type help() for the list of builtins, exit to quit.")
	for {
		if err := isCancelled(thread); err != nil {
			return err
		}
		if err := env.rep(rl, thread, globals); err != nil {
			if err == io.EOF || errors.Is(err, liner.ErrPromptAborted) {
				break
			}
			return err
		}
	}
	fmt.Fprintln(env.out)
	env.exportGlobals(globals)
	return nil
}

// completer completes the identifier under the cursor from builtins and
// the REPL's globals.
func (env *Env) completer(globals starlark.StringDict) liner.Completer {
	return func(line string) []string {
		names := trie.New()
		for name := range globals {
			names.Add(name, nil)
		}
		i := strings.LastIndexFunc(line, func(r rune) bool {
			return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
		})
		head, word := line[:i+1], line[i+1:]
		if word == "" {
			return nil
		}
		var c []string
		for _, name := range names.PrefixSearch(word) {
			c = append(c, head+name)
		}
		return c
	}
}

// rep reads, evaluates, and prints one item. It only returns an error if
// reading failed; Starlark errors are printed.
func (env *Env) rep(rl *liner.State, thread *starlark.Thread, globals starlark.StringDict) error {
	eof := false

	prompt := normalPrompt
	readline := func() ([]byte, error) {
		line, err := rl.Prompt(prompt)
		if line == exitCommand {
			eof = true
			return nil, io.EOF
		}
		rl.AppendHistory(line)
		prompt = extraPrompt
		if err != nil {
			if err == io.EOF {
				eof = true
			}
			return nil, err
		}
		return []byte(line + "\n"), nil
	}

	f, err := syntax.ParseCompoundStmt("<stdin>", readline)
	if err != nil {
		if eof {
			return io.EOF
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return err
		}
		env.printError(err)
		return nil
	}

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExpr(thread, expr, globals)
		if err != nil {
			env.printError(err)
			return nil
		}
		if v != starlark.None {
			fmt.Fprintln(env.out, v)
		}
		return nil
	}

	prog, err := starlark.FileProgram(f, globals.Has)
	if err != nil {
		env.printError(err)
		return nil
	}
	res, err := prog.Init(thread, globals)
	if err != nil {
		env.printError(err)
	}
	// Globals of this chunk become predeclared names of the next one, even
	// if execution failed part way.
	for k, v := range res {
		globals[k] = v
	}
	return nil
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// printError prints err, or its backtrace if it is a Starlark evaluation
// error.
func (env *Env) printError(err error) {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		fmt.Fprintln(env.out, evalErr.Backtrace())
		return
	}
	fmt.Fprintln(env.out, err)
}
