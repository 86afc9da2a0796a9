package agent

import (
	"context"
	"io"
	"sync"
)

type streamItem struct {
	chunk Chunk
	err   error
}

// chanStream adapts a producer goroutine to the Stream interface.
type chanStream struct {
	items  chan streamItem
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	ended  bool
}

// runStream starts produce in a goroutine. produce calls emit for every chunk;
// its return value terminates the stream (nil becomes io.EOF).
func runStream(ctx context.Context, produce func(ctx context.Context, emit func(Chunk) error) error) *chanStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chanStream{
		items:  make(chan streamItem),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		emit := func(c Chunk) error {
			select {
			case s.items <- streamItem{chunk: c}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := produce(ctx, emit)
		if err == nil {
			err = io.EOF
		}
		select {
		case s.items <- streamItem{err: err}:
		case <-ctx.Done():
		}
	}()
	return s
}

func (s *chanStream) Next(ctx context.Context) (Chunk, error) {
	if s.ended {
		return Chunk{}, io.EOF
	}
	select {
	case it := <-s.items:
		if it.err != nil {
			s.ended = true
		}
		return it.chunk, it.err
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	}
}

// Close stops the producer and waits for it to exit.
func (s *chanStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// StaticStream replays a fixed list of chunks, then returns err (io.EOF when
// err is nil). Useful for scripted engines.
type StaticStream struct {
	chunks []Chunk
	err    error
	pos    int
	closed bool
}

func NewStaticStream(err error, chunks ...Chunk) *StaticStream {
	return &StaticStream{chunks: chunks, err: err}
}

func (s *StaticStream) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.closed {
		return Chunk{}, io.EOF
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return Chunk{}, s.err
	}
	return Chunk{}, io.EOF
}

func (s *StaticStream) Close() error {
	s.closed = true
	return nil
}
