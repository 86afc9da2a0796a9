// Package stream drains one engine invocation, printing updates as they
// arrive and collecting the interrupts it raises.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

// Printer receives each update message in arrival order.
type Printer interface {
	Agent(msg providers.Message)
}

// Consumer runs invocations against an engine.
type Consumer struct {
	out Printer
}

func NewConsumer(out Printer) *Consumer {
	return &Consumer{out: out}
}

// Consume opens one invocation and reads it to the end. The returned batch is
// in emission order and empty when the run finished without suspending.
func (c *Consumer) Consume(ctx context.Context, eng agent.Engine, in agent.Input, cfg agent.RunConfig) ([]interrupt.Interrupt, error) {
	ctx, span := tracing.Tracer().Start(ctx, "stream.invoke")
	defer span.End()

	if cfg.Mode == "" {
		cfg.Mode = agent.ModeUpdates
	}
	s, err := eng.Stream(ctx, in, cfg)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("start invocation: %w", err)
	}
	defer s.Close()

	var (
		batch  []interrupt.Interrupt
		chunks int
	)
	for {
		chunk, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
		chunks++

		if chunk.Kind == agent.ChunkInterrupt {
			batch = append(batch, chunk.Interrupts...)
			continue
		}
		for _, u := range chunk.Updates {
			for _, m := range u.Messages {
				c.out.Agent(m)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("stream.chunks", chunks),
		attribute.Int("stream.interrupts", len(batch)),
	)
	return batch, nil
}
