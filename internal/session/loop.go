// Package session runs the interactive chat: read a line, drive the engine
// through any interrupts, and wait for the next line.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/console"
	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/resume"
	"github.com/nextlevelbuilder/hitlchat/internal/stream"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

// State is where the loop is in a turn.
type State int

const (
	StateAwaitInput State = iota
	StateRunning
	StateAwaitDecisions
)

func (s State) String() string {
	switch s {
	case StateAwaitInput:
		return "await_input"
	case StateRunning:
		return "running"
	case StateAwaitDecisions:
		return "await_decisions"
	default:
		return "unknown"
	}
}

// LineReader supplies user lines. io.EOF ends the session.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Output is everything the loop prints.
type Output interface {
	stream.Printer
	Welcome()
	Farewell()
	Error(format string, args ...any)
}

// Decider turns one interrupt into one decision.
type Decider interface {
	Decide(ctx context.Context, in interrupt.Interrupt) (interrupt.Decision, error)
}

// Loop is a single-session REPL over an engine. It is not safe for
// concurrent use; one turn is in flight at a time.
type Loop struct {
	engine   agent.Engine
	consumer *stream.Consumer
	gate     Decider
	in       LineReader
	out      Output
	threadID string

	state State
}

func NewLoop(engine agent.Engine, gate Decider, in LineReader, out Output, threadID string) *Loop {
	return &Loop{
		engine:   engine,
		consumer: stream.NewConsumer(out),
		gate:     gate,
		in:       in,
		out:      out,
		threadID: threadID,
	}
}

// State reports the current loop state.
func (l *Loop) State() State { return l.state }

func (l *Loop) setState(s State) {
	if l.state != s {
		slog.Debug("session state", "from", l.state.String(), "to", s.String(), "thread", l.threadID)
	}
	l.state = s
}

// IsExit reports whether line ends the session: "exit" in any letter case,
// with nothing around it.
func IsExit(line string) bool {
	return strings.EqualFold(line, "exit")
}

// Run greets the user and processes lines until exit or end of input. Turn
// errors are printed and the loop keeps going; only input failures and
// context cancellation end it with an error.
func (l *Loop) Run(ctx context.Context) error {
	l.out.Welcome()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.setState(StateAwaitInput)
		line, err := l.in.ReadLine(console.Prompt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if IsExit(line) {
			break
		}

		if err := l.RunTurn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("turn failed", "thread", l.threadID, "error", err)
			l.out.Error("%v", err)
		}
	}
	l.out.Farewell()
	return nil
}

// RunTurn sends text to the engine and resolves interrupts until a stream
// ends without any.
func (l *Loop) RunTurn(ctx context.Context, text string) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "session.turn")
	defer span.End()
	defer l.setState(StateAwaitInput)

	cfg := agent.RunConfig{ThreadID: l.threadID, Mode: agent.ModeUpdates}
	input := agent.UserInput(text)
	invocations := 0
	defer func() {
		span.SetAttributes(attribute.Int("session.invocations", invocations))
		tracing.RecordError(span, err)
	}()

	for {
		l.setState(StateRunning)
		invocations++
		batch, err := l.consumer.Consume(ctx, l.engine, input, cfg)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		l.setState(StateAwaitDecisions)
		decisions := make([]interrupt.Decision, 0, len(batch))
		for _, in := range batch {
			d, err := l.gate.Decide(ctx, in)
			if err != nil {
				return err
			}
			decisions = append(decisions, d)
		}
		input = agent.ResumeInput(resume.Encode(decisions))
	}
}
