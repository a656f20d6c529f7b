package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/vm"
)

func newRunCmd(trace, stressGC, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Run a source (.lm) or compiled bytecode (.lb) file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0], newLogger(*verbose), *trace, *stressGC)
		},
	}
}

func runFile(cmd *cobra.Command, path string, log *logrus.Logger, trace, stressGC bool) error {
	adapter := logrusAdapter{log: log}
	v := vm.New()
	configureVM(v, &adapter, trace, stressGC)
	defer v.Close()

	if filepath.Ext(path) == ".lb" {
		return runBytecodeFile(cmd, v, path)
	}
	return runSourceFile(cmd, v, path)
}

func runSourceFile(cmd *cobra.Command, v *vm.VM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return exitErr(cmd, "reading %s: %v", path, err)
	}
	if _, err := v.Interpret(string(data)); err != nil {
		return exitErr(cmd, "%v", err)
	}
	return nil
}

func runBytecodeFile(cmd *cobra.Command, v *vm.VM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return exitErr(cmd, "reading %s: %v", path, err)
	}
	fn, err := object.Decode(bytes.NewReader(data), v.Heap)
	if err != nil {
		return exitErr(cmd, "decoding %s: %v", path, err)
	}
	closure := v.Heap.NewClosure(fn)
	if _, err := v.InterpretClosure(closure); err != nil {
		return exitErr(cmd, "%v", err)
	}
	return nil
}
