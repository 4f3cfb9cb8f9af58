// Command loxvm is the REPL/file driver: `loxvm [path]` compiles and runs a
// single source file with exit codes 0/65/70, or with no arguments drops
// into a REPL that shares one VM and Interner across lines.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"loxvm/internal/compiler"
	"loxvm/internal/debug"
	"loxvm/internal/intern"
	"loxvm/internal/vm"
)

const version = "loxvm 0.1.0"

const (
	exitUsage      = 64
	exitDataErr    = 65
	exitRuntimeErr = 70
	exitNoInput    = 74
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "loxvm: internal error:", r)
			os.Exit(70)
		}
	}()

	disassembly := flag.Bool("disassembly", false, "print bytecode disassembly before running")
	logLevel := flag.String("log-level", "warn", "logrus level: trace|debug|info|warn|error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loxvm [path]\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	log := newLogger(*logLevel)

	switch flag.NArg() {
	case 0:
		runREPL(log, *disassembly)
	case 1:
		os.Exit(runFile(log, flag.Arg(0), *disassembly))
	default:
		flag.Usage()
		os.Exit(exitUsage)
	}
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return logrus.NewEntry(logger)
}

// runFile reads the file at path, compiles and runs it, and translates the
// outcome into an exit code.
func runFile(log *logrus.Entry, path string, disassembly bool) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loxvm: %s\n", err)
		return exitNoInput
	}

	in := intern.New()
	defer in.Close()

	start := len(source)
	chunk, err := compiler.Compile(string(source), in, log)
	if err != nil {
		return exitDataErr
	}
	log.WithField("bytes", humanize.Bytes(uint64(start))).Debug("compiled source file")

	if disassembly {
		debug.Disassemble(os.Stdout, chunk, path)
	}

	machine := vm.NewWithLogger(in, log)
	switch machine.Run(chunk) {
	case vm.OK:
		return 0
	case vm.CompileError:
		return exitDataErr
	default:
		return exitRuntimeErr
	}
}

// runREPL reads and runs source line by line. One Interner and one VM live
// across every line, so a global defined on one line is visible on the next.
func runREPL(log *logrus.Entry, disassembly bool) {
	sessionID := uuid.New()
	log = log.WithField("session", sessionID.String())

	fmt.Println(version)

	in := intern.New()
	defer in.Close()
	machine := vm.NewWithLogger(in, log)

	prompt := "> "
	if isatty.IsTerminal(os.Stdout.Fd()) {
		prompt = "\033[32m> \033[0m"
	}

	reader := bufio.NewReaderSize(os.Stdin, 1024)
	lines := 0
	for {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if line != "" {
			lines++
			chunk, cerr := compiler.Compile(line, in, log)
			if cerr == nil {
				if disassembly {
					debug.Disassemble(os.Stdout, chunk, fmt.Sprintf("repl:%d", lines))
				}
				machine.Run(chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "loxvm:", err)
			}
			break
		}
	}

	log.WithField("lines", humanize.Comma(int64(lines))).Debug("repl session ended")
}
