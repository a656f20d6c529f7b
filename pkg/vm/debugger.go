// Package vm - debugger support
package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/table"
	"github.com/kristofer/lumen/pkg/value"
)

// Debugger provides interactive debugging capabilities for the VM: step
// execution, instruction breakpoints, and inspection of the stack, the
// current frame's locals, the globals table, and the call stack.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool // instruction offsets, within the current frame's chunk
	stepMode    bool
	enabled     bool
}

// NewDebugger creates a new debugger instance attached to vm.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{
		vm:          vm,
		breakpoints: make(map[int]bool),
	}
}

// Enable activates the debugger.
func (d *Debugger) Enable() { d.enabled = true }

// Disable deactivates the debugger.
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode enables or disables step mode.
// In step mode, execution pauses after each instruction.
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint adds a breakpoint at the specified instruction offset.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint removes a breakpoint at the specified instruction offset.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

// ClearBreakpoints removes all breakpoints.
func (d *Debugger) ClearBreakpoints() { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether execution should pause before the
// instruction at ip in the currently executing frame's chunk.
func (d *Debugger) ShouldPause(ip int) bool {
	if !d.enabled {
		return false
	}
	return d.stepMode || d.breakpoints[ip]
}

func (d *Debugger) currentChunk() *chunk.Chunk {
	f := d.vm.currentFrame()
	return f.closure.Function.Chunk
}

// ShowCurrentInstruction displays the current instruction being executed.
func (d *Debugger) ShowCurrentInstruction() {
	f := d.vm.currentFrame()
	c := d.currentChunk()
	if f.ip >= len(c.Code) {
		fmt.Println("No current instruction")
		return
	}
	line, _ := c.DisassembleInst(f.ip)
	fmt.Println("  " + line)
}

// ShowStack displays the current VM value stack, top to bottom.
func (d *Debugger) ShowStack() {
	fmt.Println("Stack (top to bottom):")
	if d.vm.stackTop == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.stackTop - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, value.PrintValue(d.vm.stack[i]))
	}
}

// ShowLocals displays the current frame's window of the value stack,
// slot 0 being the frame's own callee (function or closure value).
func (d *Debugger) ShowLocals() {
	fmt.Println("Local slots (current frame):")
	f := d.vm.currentFrame()
	if d.vm.stackTop <= f.slots {
		fmt.Println("  (none set)")
		return
	}
	for i := f.slots; i < d.vm.stackTop; i++ {
		fmt.Printf("  [%d] %s\n", i-f.slots, value.PrintValue(d.vm.stack[i]))
	}
}

// ShowGlobals displays all global variables.
func (d *Debugger) ShowGlobals() {
	fmt.Println("Global variables:")
	any := false
	d.vm.Globals.Each(func(key table.Key, val value.Value) {
		any = true
		fmt.Printf("  %s = %s\n", key.Bytes(), value.PrintValue(val))
	})
	if !any {
		fmt.Println("  (none)")
	}
}

// ShowCallStack displays the current call stack, innermost first.
func (d *Debugger) ShowCallStack() {
	fmt.Println("Call stack (innermost first):")
	if d.vm.frameCount == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.frameCount - 1; i >= 0; i-- {
		frame := d.vm.frames[i]
		name := "script"
		if frame.closure.Function.Name != nil {
			name = frame.closure.Function.Name.Chars
		}
		fmt.Printf("  %s [ip %d]\n", name, frame.ip)
	}
}

// InteractivePrompt is called when execution pauses at a breakpoint or in
// step mode. It returns whether execution should continue (false aborts
// the program).
func (d *Debugger) InteractivePrompt() (continueExecution bool) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== Debugger Paused ===")
	d.ShowCurrentInstruction()

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		command := parts[0]

		switch command {
		case "help", "h", "?":
			d.printHelp()

		case "continue", "c":
			d.SetStepMode(false)
			return true

		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true

		case "stack", "st":
			d.ShowStack()

		case "locals", "l":
			d.ShowLocals()

		case "globals", "g":
			d.ShowGlobals()

		case "callstack", "cs":
			d.ShowCallStack()

		case "instruction", "i":
			d.ShowCurrentInstruction()

		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("Usage: breakpoint <instruction_offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Invalid instruction offset")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Printf("Breakpoint added at offset %d\n", ip)

		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("Usage: delete <instruction_offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Invalid instruction offset")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Printf("Breakpoint removed at offset %d\n", ip)

		case "list", "ls":
			d.listInstructions()

		case "quit", "q":
			return false

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", command)
		}
	}
}

// printHelp displays available debugger commands.
func (d *Debugger) printHelp() {
	fmt.Println("Debugger Commands:")
	fmt.Println("  help, h, ?           Show this help")
	fmt.Println("  continue, c          Continue execution")
	fmt.Println("  step, s, next, n     Execute one instruction and pause again")
	fmt.Println("  stack, st            Show the value stack")
	fmt.Println("  locals, l            Show the current frame's local slots")
	fmt.Println("  globals, g           Show global variables")
	fmt.Println("  callstack, cs        Show the call stack")
	fmt.Println("  instruction, i       Show current instruction")
	fmt.Println("  breakpoint <n>, b    Add breakpoint at instruction offset n")
	fmt.Println("  delete <n>, d        Remove breakpoint at instruction offset n")
	fmt.Println("  list, ls             List all instructions in the current chunk")
	fmt.Println("  quit, q              Quit debugging (abort execution)")
}

// listInstructions displays every instruction in the currently executing
// frame's chunk, marking the current offset and any breakpoints.
func (d *Debugger) listInstructions() {
	c := d.currentChunk()
	f := d.vm.currentFrame()
	fmt.Println("Instructions:")
	for offset := 0; offset < len(c.Code); {
		marker := "  "
		if offset == f.ip {
			marker = "->"
		} else if d.breakpoints[offset] {
			marker = "*"
		}
		line, next := c.DisassembleInst(offset)
		fmt.Printf("%s %s\n", marker, line)
		offset = next
	}
}
