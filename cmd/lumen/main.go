// Command lumen is the compiler/VM front end: run scripts, drop into an
// interactive REPL, or work directly with compiled bytecode files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/lumen/pkg/vm"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var trace bool
	var stressGC bool
	var verbose bool

	root := &cobra.Command{
		Use:     "lumen [script]",
		Short:   "lumen compiles and runs a small dynamically-typed scripting language",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runREPL(cmd, newLogger(verbose), trace, stressGC)
			}
			return runFile(cmd, args[0], newLogger(verbose), trace, stressGC)
		},
	}
	root.PersistentFlags().BoolVar(&trace, "trace", false, "log every executed instruction")
	root.PersistentFlags().BoolVar(&stressGC, "stress-gc", false, "collect garbage before every allocation")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(
		newRunCmd(&trace, &stressGC, &verbose),
		newReplCmd(&trace, &stressGC, &verbose),
		newCompileCmd(),
		newDisassembleCmd(),
	)
	return root
}

func configureVM(v *vm.VM, log *logrusAdapter, trace, stressGC bool) {
	v.Log = *log
	v.TraceExecution = trace
	v.StressGC = stressGC
}

func exitErr(cmd *cobra.Command, format string, args ...interface{}) error {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	return fmt.Errorf(format, args...)
}
