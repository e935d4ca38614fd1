package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TransportError reports a failure from the Sender's transport sink, along
// with the session it occurred under.
type TransportError struct {
	SessionToken string
	Err          error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// SendFunc pushes one batch of concatenated PCM to the wire. isLast marks the
// final batch of a session, used to set the transport's end-of-stream flag.
type SendFunc func(ctx context.Context, pcm []byte, isLast bool) error

const (
	senderBatchFrames = 10
	senderPollTimeout = 50 * time.Millisecond
	senderDrainBudget = 500 * time.Millisecond
)

// Sender drains a Queue on its own goroutine, batching up to 10 frames per
// transport send. It never retries: the first send error is reported once
// via Errors and the goroutine exits.
type Sender struct {
	queue        *Queue
	send         SendFunc
	sessionToken string

	errCh    chan TransportError
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSender starts a sender goroutine bound to one session. Stop ends it.
func NewSender(queue *Queue, sessionToken string, send SendFunc) *Sender {
	s := &Sender{
		queue:        queue,
		send:         send,
		sessionToken: sessionToken,
		errCh:        make(chan TransportError, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Errors delivers at most one TransportError before the sender goroutine
// exits.
func (s *Sender) Errors() <-chan TransportError {
	return s.errCh
}

func (s *Sender) run() {
	defer close(s.done)
	ctx := context.Background()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		frames := s.queue.GetBatch(senderBatchFrames, senderPollTimeout, s.sessionToken)
		if len(frames) == 0 {
			continue
		}
		if err := s.sendBatch(ctx, frames, false); err != nil {
			s.reportError(err)
			return
		}
	}
}

func (s *Sender) sendBatch(ctx context.Context, frames []Frame, isLast bool) error {
	pcm := make([]byte, 0, len(frames)*FrameBytes)
	for _, f := range frames {
		pcm = append(pcm, f.Data...)
	}
	return s.send(ctx, pcm, isLast)
}

func (s *Sender) reportError(err error) {
	select {
	case s.errCh <- TransportError{SessionToken: s.sessionToken, Err: err}:
	default:
	}
}

// Stop halts the sender. When drain is true, it spends up to 0.5s draining
// any frames still queued for this session, then always sends one final
// batch (possibly empty) with isLast set so the transport's end-of-stream
// flag actually reaches the wire.
func (s *Sender) Stop(drain bool) {
	first := false
	s.stopOnce.Do(func() {
		close(s.stop)
		first = true
	})
	if !first {
		return
	}
	<-s.done

	if !drain {
		return
	}

	ctx := context.Background()
	deadline := time.Now().Add(senderDrainBudget)
	for time.Now().Before(deadline) {
		frames := s.queue.Flush(s.sessionToken)
		if len(frames) == 0 {
			break
		}
		if err := s.sendBatch(ctx, frames, false); err != nil {
			break
		}
	}
	_ = s.sendBatch(ctx, nil, true)
}

// ErrSenderStopped indicates a send was attempted after Stop.
var ErrSenderStopped = errors.New("sender stopped")
