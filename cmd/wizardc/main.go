package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/teris-io/cli"

	"wizardc.dev/wizardc/pkg/codegen"
	"wizardc.dev/wizardc/pkg/diagnostic"
	"wizardc.dev/wizardc/pkg/parser"
)

var Description = strings.ReplaceAll(`
Wizardc compiles one source program, written in a small statically-typed
C-like language, into AT&T-syntax x86-64 assembly for System V AMD64. The
output is written to stdout and is expected to be handed to a host assembler
and linker; wizardc performs no assembly or linking itself.
`, "\n", " ")

var Wizardc = cli.New(Description).
	WithArg(cli.NewArg("source", "The program source text to compile")).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: wizardc <source>\n")
		return 1
	}
	src := args[0]

	p, err := parser.New(src)
	if err != nil {
		return report(src, err)
	}
	program, err := p.Parse()
	if err != nil {
		return report(src, err)
	}

	emitter := codegen.New(os.Stdout)
	if err := emitter.Emit(program); err != nil {
		return report(src, err)
	}
	return 0
}

// report prints a single diagnostic to stderr, rendering the caret-ruler
// format whenever the error carries the source span to draw it with.
func report(src string, err error) int {
	var diagErr *diagnostic.Error
	if errors.As(err, &diagErr) {
		fmt.Fprintln(os.Stderr, diagErr.Render())
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
	}
	return 1
}

func main() { os.Exit(Wizardc.Run(os.Args, os.Stdout)) }
