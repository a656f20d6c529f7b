package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kristofer/lumen/pkg/compiler"
	"github.com/kristofer/lumen/pkg/object"
)

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <input.lm> [output.lb]",
		Short: "Compile a source file to a .lb bytecode file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			out := in
			if strings.HasSuffix(out, ".lm") {
				out = strings.TrimSuffix(out, ".lm")
			}
			out += ".lb"
			if len(args) == 2 {
				out = args[1]
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return exitErr(cmd, "reading %s: %v", in, err)
			}

			heap := object.NewHeap()
			fn, err := compiler.Compile(string(data), heap, nil)
			if err != nil {
				return exitErr(cmd, "%v", err)
			}

			outFile, err := os.Create(out)
			if err != nil {
				return exitErr(cmd, "creating %s: %v", out, err)
			}
			defer outFile.Close()

			if err := object.Encode(fn, outFile); err != nil {
				return exitErr(cmd, "encoding %s: %v", out, err)
			}

			cmd.Printf("compiled %s -> %s\n", in, out)
			return nil
		},
	}
}
