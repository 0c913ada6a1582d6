// Package logredirect captures what is written to process-wide file
// descriptors (stdout and stderr by default) and forwards it line by line
// to a Sink.
package logredirect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
	"golang.org/x/sys/unix"
)

const (
	DefaultMaxLineLength = 1023
	DefaultStdoutTag     = "stdout"
	DefaultStderrTag     = "stderr"
)

// Stream is a file descriptor to capture and the tag its lines are
// forwarded under.
type Stream struct {
	Tag string
	FD  int
}

func DefaultStreams() []Stream {
	return []Stream{
		{Tag: DefaultStdoutTag, FD: unix.Stdout},
		{Tag: DefaultStderrTag, FD: unix.Stderr},
	}
}

type redirectedStream struct {
	Stream
	SavedFD int
	Reader  *os.File
	Writer  *os.File
}

type Redirector struct {
	Streams       []Stream
	Sink          Sink
	MaxLineLength int
	Metrics       *Metrics

	locker    xsync.Mutex
	started   bool
	closed    bool
	redirects []*redirectedStream
	waitGroup sync.WaitGroup
	closeCh   chan struct{}
}

func New(sink Sink, streams ...Stream) *Redirector {
	if len(streams) == 0 {
		streams = DefaultStreams()
	}
	return &Redirector{
		Streams:       streams,
		Sink:          sink,
		MaxLineLength: DefaultMaxLineLength,
		closeCh:       make(chan struct{}),
	}
}

// Start redirects every stream into its own pipe and starts one reader
// per stream. Cancelling ctx has the same effect as Close.
func (r *Redirector) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()
	return xsync.DoR1(ctx, &r.locker, func() error {
		return r.startLocked(ctx)
	})
}

func (r *Redirector) startLocked(ctx context.Context) (_err error) {
	if r.started {
		return fmt.Errorf("already started")
	}
	if r.Sink == nil {
		return fmt.Errorf("no sink is set")
	}
	r.started = true

	defer func() {
		if _err != nil {
			if err := r.restoreLocked(ctx); err != nil {
				logger.Errorf(ctx, "unable to roll back the redirection: %v", err)
			}
			// no reader was spawned yet, so nobody else closes the read ends
			for _, rs := range r.redirects {
				if err := rs.Reader.Close(); err != nil {
					logger.Warnf(ctx, "unable to close the pipe reader of '%s': %v", rs.Tag, err)
				}
			}
			r.redirects = nil
			r.started = false
		}
	}()
	for _, s := range r.Streams {
		rs, err := redirect(s)
		if err != nil {
			return fmt.Errorf("unable to redirect '%s' (fd %d): %w", s.Tag, s.FD, err)
		}
		r.redirects = append(r.redirects, rs)
	}

	for _, rs := range r.redirects {
		r.waitGroup.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer r.waitGroup.Done()
			r.forward(ctx, rs)
		})
	}

	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			if err := r.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Errorf(ctx, "unable to stop the log redirection: %v", err)
			}
		case <-r.closeCh:
		}
	})
	return nil
}

func redirect(s Stream) (_ret *redirectedStream, _err error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("unable to create a pipe: %w", err)
	}
	defer func() {
		if _err != nil {
			pr.Close()
			pw.Close()
		}
	}()

	saved, err := unix.Dup(s.FD)
	if err != nil {
		return nil, fmt.Errorf("unable to save the original descriptor: %w", err)
	}
	if err := unix.Dup2(int(pw.Fd()), s.FD); err != nil {
		unix.Close(saved)
		return nil, fmt.Errorf("unable to point the descriptor to the pipe: %w", err)
	}
	return &redirectedStream{
		Stream:  s,
		SavedFD: saved,
		Reader:  pr,
		Writer:  pw,
	}, nil
}

func (r *Redirector) forward(ctx context.Context, rs *redirectedStream) {
	logger.Debugf(ctx, "forwarding '%s'", rs.Tag)
	defer func() { logger.Debugf(ctx, "/forwarding '%s'", rs.Tag) }()
	defer rs.Reader.Close()

	maxLen := r.MaxLineLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}
	reader := bufio.NewReaderSize(rs.Reader, maxLen)
	for {
		// a line longer than the buffer comes in several chunks, each
		// forwarded as a line of its own
		chunk, _, err := reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Errorf(ctx, "unable to read from '%s': %v", rs.Tag, err)
			}
			return
		}
		line := string(chunk)
		err = r.Sink.WriteLine(ctx, rs.Tag, line)
		r.Metrics.observe(rs.Tag, line, err)
	}
}

// Close restores the original descriptors. The readers forward whatever
// is still buffered in the pipes and exit; use Wait to join them.
func (r *Redirector) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoR1(ctx, &r.locker, func() error {
		if r.closed {
			return nil
		}
		r.closed = true
		if !r.started {
			return nil
		}
		close(r.closeCh)
		return r.restoreLocked(ctx)
	})
}

func (r *Redirector) restoreLocked(ctx context.Context) error {
	var errs []error
	for _, rs := range r.redirects {
		if err := unix.Dup2(rs.SavedFD, rs.FD); err != nil {
			errs = append(errs, fmt.Errorf("unable to restore '%s' (fd %d): %w", rs.Tag, rs.FD, err))
		}
		if err := unix.Close(rs.SavedFD); err != nil {
			logger.Warnf(ctx, "unable to close the saved descriptor %d: %v", rs.SavedFD, err)
		}
		if err := rs.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the pipe of '%s': %w", rs.Tag, err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every reader has exited.
func (r *Redirector) Wait() {
	r.waitGroup.Wait()
}
