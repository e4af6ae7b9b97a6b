package audio

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"
)

// StopSignal blocks until a recording should end.
type StopSignal interface {
	Wait(ctx context.Context) error
}

// StopFunc adapts a function to StopSignal.
type StopFunc func(ctx context.Context) error

func (f StopFunc) Wait(ctx context.Context) error { return f(ctx) }

// LineStop ends a recording when the operator enters a line.
//
// One goroutine owns the reader for the lifetime of the LineStop so that a
// cancelled Wait does not lose buffered input for the next recording.
type LineStop struct {
	r     io.Reader
	once  sync.Once
	lines chan error
}

// NewLineStop reads stop lines from r, typically os.Stdin.
func NewLineStop(r io.Reader) *LineStop {
	return &LineStop{r: r}
}

func (l *LineStop) Wait(ctx context.Context) error {
	l.once.Do(l.start)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-l.lines:
		if !ok {
			return io.EOF
		}
		return err
	}
}

func (l *LineStop) start() {
	l.lines = make(chan error)
	go func() {
		defer close(l.lines)
		scanner := bufio.NewScanner(l.r)
		for scanner.Scan() {
			l.lines <- nil
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		l.lines <- err
	}()
}

// TimerStop ends a recording after a fixed duration.
type TimerStop time.Duration

func (d TimerStop) Wait(ctx context.Context) error {
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
