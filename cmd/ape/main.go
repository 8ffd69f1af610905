// Command ape is a thin example host for the ape package: run a script
// file or print version information. It exists to give the embeddable
// core's host interfaces (Config, FileIO, Stdio) a runnable example, not
// to specify CLI behavior.
package main

import (
	"fmt"
	"os"

	"ape"
	"ape/internal/builtins"

	"github.com/mattn/go-isatty"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: ape run <file.ape>")
			os.Exit(1)
		}
		runFile(args[1])
	case "version", "--version", "-v":
		fmt.Printf("ape %s\n", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  ape run <file.ape>   run a script")
	fmt.Println("  ape version          print the version")
}

func runFile(path string) {
	ctx := ape.NewContext(ape.Config{Stdio: os.Stdout})
	defer ctx.Close()

	builtins.RegisterCore(ctx)

	result, err := ctx.CompileFile(path)
	if err != nil {
		reportError(path, err)
		os.Exit(1)
	}

	if _, err := ctx.Execute(result); err != nil {
		reportError(path, err)
		os.Exit(1)
	}
}

// reportError colors the message when stderr is a real terminal.
func reportError(path string, err error) {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s: %v\x1b[0m\n", path, err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
}
