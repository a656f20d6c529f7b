package main

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/lumen/pkg/compiler"
	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/value"
)

func newDisassembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disassemble <file>",
		Aliases: []string{"disasm"},
		Short:   "Print the disassembly of a source (.lm) or bytecode (.lb) file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return exitErr(cmd, "reading %s: %v", path, err)
			}

			heap := object.NewHeap()
			var fn *object.Function
			if len(data) >= 4 && string(data[:4]) == "LUMN" {
				fn, err = object.Decode(bytes.NewReader(data), heap)
			} else {
				fn, err = compiler.Compile(string(data), heap, nil)
			}
			if err != nil {
				return exitErr(cmd, "%v", err)
			}

			cmd.Print(disassembleRecursive(fn, path))
			return nil
		},
	}
}

func disassembleRecursive(fn *object.Function, name string) string {
	out := fn.Chunk.Disassemble(name)
	for _, k := range fn.Chunk.Constants {
		if k.IsObjType(value.ObjTypeFunction) {
			nested := k.AsObj().(*object.Function)
			out += "\n" + disassembleRecursive(nested, nested.String())
		}
	}
	return out
}
