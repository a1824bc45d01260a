package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"sigil/pkg/driver"
	"sigil/pkg/errors"
	"sigil/pkg/harness"
	"sigil/pkg/vm"
)

func main() {
	exprFlag := flag.String("e", "", "Run the given expression and exit")
	configFlag := flag.String("config", "", "YAML configuration file")
	bytecodeFlag := flag.Bool("bytecode", false, "Log compiled bytecode before execution")
	checkFlag := flag.Bool("check", false, "Only compile the given files, concurrently, and report early errors")
	mjsunitFlag := flag.Bool("mjsunit", false, "Install the assertion natives (assertEquals, assertThrows, ...)")

	flag.Parse()

	cfg := driver.DefaultConfig()
	if *configFlag != "" {
		var err error
		cfg, err = driver.LoadConfig(*configFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(64) // Exit code 64: command line usage error
		}
	}
	if *bytecodeFlag {
		cfg.Compile.Disassemble = true
	}
	driver.ConfigureLogging(cfg.Log)

	if *checkFlag {
		if flag.NArg() == 0 {
			fmt.Fprintf(os.Stderr, "Usage: sigil -check <file>...\n")
			os.Exit(64)
		}
		if !checkFiles(cfg, flag.Args()) {
			os.Exit(65) // Exit code 65: data format error
		}
		return
	}

	session := driver.NewSession(cfg)
	if *mjsunitFlag {
		harness.Install(session)
	}

	if *exprFlag != "" {
		value, errs := session.RunString(*exprFlag)
		if !display(os.Stdout, *exprFlag, value, errs) {
			os.Exit(70) // Exit code 70: internal software error
		}
		return
	}

	switch flag.NArg() {
	case 0:
		runRepl(session)
	case 1:
		runFile(session, flag.Arg(0))
	default:
		fmt.Fprintf(os.Stderr, "Usage: sigil [script] or sigil -e \"expression\" or sigil -check <file>...\n")
		os.Exit(64)
	}
}

func runFile(session *driver.Session, filename string) {
	sourceBytes, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file '%s': %s\n", filename, err.Error())
		os.Exit(70)
	}
	_, errs := session.RunFile(filename)
	if len(errs) > 0 {
		errors.DisplayErrors(os.Stderr, string(sourceBytes), errs)
		os.Exit(70)
	}
}

// runRepl starts the Read-Eval-Print Loop. Declarations persist between
// lines. Piped input gets no banner or prompt.
func runRepl(session *driver.Session) {
	reader := bufio.NewReader(os.Stdin)
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("Sigil (Ctrl+C to exit)")
	}

	for {
		if interactive {
			fmt.Print("> ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if interactive {
					fmt.Println("\nGoodbye!")
				}
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", err)
			break
		}
		if line == "\n" {
			continue
		}
		value, errs := session.RunString(line)
		_ = display(os.Stdout, line, value, errs)
	}
}

func display(out io.Writer, source string, value vm.Value, errs []errors.SigilError) bool {
	if len(errs) > 0 {
		errors.DisplayErrors(os.Stderr, source, errs)
		return false
	}
	fmt.Fprintln(out, value.Inspect())
	return true
}

func checkFiles(cfg driver.Config, paths []string) bool {
	results, err := driver.CompileFiles(context.Background(), cfg, paths)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	ok := true
	for _, r := range results {
		if len(r.Errors) == 0 {
			continue
		}
		ok = false
		fmt.Fprintf(os.Stderr, "%s:\n", r.Path)
		content, readErr := os.ReadFile(r.Path)
		if readErr != nil {
			for _, e := range r.Errors {
				fmt.Fprintf(os.Stderr, "  %s\n", e.Error())
			}
			continue
		}
		errors.DisplayErrors(os.Stderr, string(content), r.Errors)
	}
	return ok
}
