// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/diagnostics"
	"brilopt/internal/driver"
	"brilopt/internal/logging"
	"brilopt/internal/stats"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("brilopt", flag.ContinueOnError)

	var file, out, logLevel string
	var showStats bool
	var all, constructCFG, toSSA, fromSSA, lvn, dce, loops, transformPrint bool

	fs.StringVar(&file, "f", "", "input path; absent reads stdin")
	fs.StringVar(&file, "file", "", "input path; absent reads stdin")
	fs.StringVar(&out, "o", "", "output path; absent writes stdout")
	fs.StringVar(&out, "out", "", "output path; absent writes stdout")
	fs.BoolVar(&showStats, "s", false, "print summary counters to stderr")
	fs.BoolVar(&showStats, "stats", false, "print summary counters to stderr")
	fs.StringVar(&logLevel, "log-level", "warn", "error|warn|info|debug")
	fs.BoolVar(&all, "all", false, "run into-ssa, loops, lvn, dce, out-of-ssa in that order")
	fs.BoolVar(&constructCFG, "construct-cfg", false, "build and linearize the CFG")
	fs.BoolVar(&toSSA, "to-ssa", false, "convert into SSA form")
	fs.BoolVar(&fromSSA, "from-ssa", false, "convert out of SSA form")
	fs.BoolVar(&lvn, "lvn", false, "run local value numbering")
	fs.BoolVar(&dce, "dce", false, "run dead code elimination")
	fs.BoolVar(&loops, "loops", false, "run natural-loop discovery and LICM")
	fs.BoolVar(&transformPrint, "transform-print", false, "log the CFG structure between passes")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	logging.Configure(logLevel)

	opts := driver.Options{
		ConstructCFG:   constructCFG,
		ToSSA:          toSSA,
		FromSSA:        fromSSA,
		LVN:            lvn,
		DCE:            dce,
		Loops:          loops,
		TransformPrint: transformPrint,
	}
	if all {
		opts = driver.All()
	}

	input, closeInput, err := openInput(file)
	if err != nil {
		color.Red("%v", err)
		return 2
	}
	defer closeInput()

	data, err := io.ReadAll(input)
	if err != nil {
		color.Red("%v", err)
		return 2
	}

	prog, err := bril.ParseProgram(data)
	if err != nil {
		err = diagnostics.Malformed("%v", err)
		reportError(err)
		return diagnostics.ExitCode(err)
	}
	if err := prog.Validate(); err != nil {
		err = diagnostics.Malformed("%v", err)
		reportError(err)
		return diagnostics.ExitCode(err)
	}

	report := stats.CountProgram(prog)

	result, err := driver.RunObserved(prog, opts, func(name string, changed bool) {
		report.RecordPass(name, changed)
	})
	if err != nil {
		reportError(err)
		return diagnostics.ExitCode(err)
	}

	encoded, err := result.Encode()
	if err != nil {
		reportError(err)
		return diagnostics.ExitCode(err)
	}

	output, closeOutput, err := openOutput(out)
	if err != nil {
		color.Red("%v", err)
		return 2
	}
	defer closeOutput()

	if _, err := output.Write(append(encoded, '\n')); err != nil {
		color.Red("%v", err)
		return 2
	}

	if showStats {
		final := stats.CountProgram(result)
		report.Instrs = final.Instrs
		report.Blocks = blockCount(result)
		report.Write(os.Stderr)
	}

	return 0
}

func blockCount(prog *bril.Program) int {
	n := 0
	for _, fn := range prog.Functions {
		g, err := cfg.Build(fn)
		if err != nil {
			continue
		}
		n += len(g.Blocks)
	}
	return n
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func reportError(err error) {
	reporter := diagnostics.NewReporter()
	rep := diagnostics.FromError(err)
	fmt.Fprint(os.Stderr, reporter.Format(rep))
}
