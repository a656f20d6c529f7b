package main

import (
	"errors"
	"fmt"
	"io"

	heredoc "github.com/MakeNowJust/heredoc/v2"
	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kristofer/lumen/pkg/vm"
)

func newReplCmd(trace, stressGC, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, newLogger(*verbose), *trace, *stressGC)
		},
	}
}

var replHelp = heredoc.Doc(`
	lumen REPL

	Type any statement and press Enter to run it immediately; the VM's
	globals persist across lines. Type :help to see this message again,
	:quit or Ctrl-D to exit.
`)

func runREPL(cmd *cobra.Command, log *logrus.Logger, trace, stressGC bool) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lumen> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	adapter := logrusAdapter{log: log}
	v := vm.New()
	configureVM(v, &adapter, trace, stressGC)
	defer v.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "lumen REPL — :help for help, :quit to exit")
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}
		switch line {
		case "":
			continue
		case ":help":
			fmt.Fprint(cmd.OutOrStdout(), replHelp)
			continue
		case ":quit", ":exit":
			return nil
		}

		if _, err := v.Interpret(line); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
}
