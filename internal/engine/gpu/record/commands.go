package record

import (
	"fmt"
	"strings"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

// Op identifies a recorded command.
type Op int

// Recorded operations.
const (
	OpSetDescriptorPile Op = iota
	OpSetIndexBuffer
	OpSetVertexBuffers
	OpSetRootSignature
	OpSetRootConstantBuffer
	OpSetRootDescriptorTable
	OpSetPipeline
	OpDrawIndexed
)

func (o Op) String() string {
	switch o {
	case OpSetDescriptorPile:
		return "SetDescriptorPile"
	case OpSetIndexBuffer:
		return "SetIndexBuffer"
	case OpSetVertexBuffers:
		return "SetVertexBuffers"
	case OpSetRootSignature:
		return "SetRootSignature"
	case OpSetRootConstantBuffer:
		return "SetRootConstantBuffer"
	case OpSetRootDescriptorTable:
		return "SetRootDescriptorTable"
	case OpSetPipeline:
		return "SetPipeline"
	case OpDrawIndexed:
		return "DrawIndexed"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Command is one recorded call. Index is the root parameter index for root
// bindings and the index count for draws.
type Command struct {
	Op            Op
	Index         int
	Address       gpu.Address
	Handle        gpu.DescriptorHandle
	RootSignature gpu.RootSignature
	Pipeline      gpu.Pipeline
	Vertex        []gpu.VertexBufferView
	IndexView     gpu.IndexBufferView
}

func (c Command) String() string {
	switch c.Op {
	case OpSetRootConstantBuffer:
		return fmt.Sprintf("%s(%d, %#x)", c.Op, c.Index, uint64(c.Address))
	case OpSetRootDescriptorTable:
		return fmt.Sprintf("%s(%d, %#x)", c.Op, c.Index, uint64(c.Handle))
	case OpDrawIndexed:
		return fmt.Sprintf("%s(%d)", c.Op, c.Index)
	default:
		return c.Op.String()
	}
}

// CommandList records every call in order.
type CommandList struct {
	Commands []Command
}

// SetDescriptorPile implements gpu.CommandList.
func (cl *CommandList) SetDescriptorPile(gpu.DescriptorPile) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetDescriptorPile})
}

// SetIndexBuffer implements gpu.CommandList.
func (cl *CommandList) SetIndexBuffer(view gpu.IndexBufferView) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetIndexBuffer, IndexView: view})
}

// SetVertexBuffers implements gpu.CommandList.
func (cl *CommandList) SetVertexBuffers(first int, views []gpu.VertexBufferView) {
	cl.Commands = append(cl.Commands, Command{
		Op:     OpSetVertexBuffers,
		Index:  first,
		Vertex: append([]gpu.VertexBufferView(nil), views...),
	})
}

// SetRootSignature implements gpu.CommandList.
func (cl *CommandList) SetRootSignature(rs gpu.RootSignature) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetRootSignature, RootSignature: rs})
}

// SetRootConstantBuffer implements gpu.CommandList.
func (cl *CommandList) SetRootConstantBuffer(index int, addr gpu.Address) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetRootConstantBuffer, Index: index, Address: addr})
}

// SetRootDescriptorTable implements gpu.CommandList.
func (cl *CommandList) SetRootDescriptorTable(index int, handle gpu.DescriptorHandle) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetRootDescriptorTable, Index: index, Handle: handle})
}

// SetPipeline implements gpu.CommandList.
func (cl *CommandList) SetPipeline(p gpu.Pipeline) {
	cl.Commands = append(cl.Commands, Command{Op: OpSetPipeline, Pipeline: p})
}

// DrawIndexed implements gpu.CommandList.
func (cl *CommandList) DrawIndexed(indexCount, _, _, _, _ int) {
	cl.Commands = append(cl.Commands, Command{Op: OpDrawIndexed, Index: indexCount})
}

// Draws splits the recording into per-draw command groups, each ending
// with its DrawIndexed.
func (cl *CommandList) Draws() [][]Command {
	var out [][]Command
	start := 0
	for i, c := range cl.Commands {
		if c.Op == OpDrawIndexed {
			out = append(out, cl.Commands[start:i+1])
			start = i + 1
		}
	}
	return out
}

// Ops returns the operation names of cmds joined by spaces.
func Ops(cmds []Command) string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Op.String()
	}
	return strings.Join(names, " ")
}

// Reset drops all recorded commands.
func (cl *CommandList) Reset() {
	cl.Commands = cl.Commands[:0]
}
