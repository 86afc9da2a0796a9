// Package agent defines the contract between the chat loop and a reasoning
// engine, and ships Graph, a tool-calling ReAct engine that can suspend on
// interrupts and resume from decisions.
package agent

import (
	"context"
	"errors"

	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/resume"
)

var (
	ErrNothingToResume  = errors.New("agent: thread has no outstanding interrupts")
	ErrDecisionMismatch = errors.New("agent: decision count does not match outstanding interrupts")
	ErrMaxIterations    = errors.New("agent: max iterations reached")
	ErrInputBlocked     = errors.New("agent: message blocked by input guard")
)

// Mode selects what an invocation streams. Only per-node updates are
// produced today.
type Mode string

const ModeUpdates Mode = "updates"

// RunConfig identifies the conversation an invocation belongs to.
type RunConfig struct {
	ThreadID string
	Mode     Mode
}

// Input is either a new user message or a resume command, never both.
type Input struct {
	Text   string
	Resume *resume.Command
}

// UserInput starts a turn with a user message.
func UserInput(text string) Input { return Input{Text: text} }

// ResumeInput continues a suspended invocation.
func ResumeInput(cmd *resume.Command) Input { return Input{Resume: cmd} }

func (in Input) IsResume() bool { return in.Resume != nil }

// Engine runs one invocation and exposes its output as a stream.
type Engine interface {
	Stream(ctx context.Context, in Input, cfg RunConfig) (Stream, error)
}

// ChunkKind tags a chunk.
type ChunkKind int

const (
	ChunkUpdates ChunkKind = iota
	ChunkInterrupt
)

// NodeUpdate is the output of one graph node. Node is "agent" for model
// output and "tools" for tool results.
type NodeUpdate struct {
	Node     string
	Messages []providers.Message
}

// Chunk is one stream element: either node updates or an interrupt batch.
type Chunk struct {
	Kind       ChunkKind
	Updates    []NodeUpdate
	Interrupts []interrupt.Interrupt
}

// Stream is a pull-based, single-pass sequence of chunks. Next returns
// io.EOF after the last chunk.
type Stream interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}
