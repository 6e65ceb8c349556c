package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/pkg/jsonmessage"
	"go.uber.org/zap"
)

// ResultCallback observes one engine response stream
type ResultCallback interface {
	// OnStart receives the stream so it can be closed early
	OnStart(closer io.Closer)
	// OnNext receives every non-error message
	OnNext(msg jsonmessage.JSONMessage)
	// OnError receives the first error; no further events follow
	OnError(err error)
	// OnComplete is called once the stream ends cleanly
	OnComplete()
}

// execStream hands body to cb and pumps it on a separate goroutine
func execStream(body io.ReadCloser, cb ResultCallback) {
	cb.OnStart(body)
	go pumpStream(body, cb)
}

// pumpStream decodes JSON messages until EOF or the first error
func pumpStream(body io.ReadCloser, cb ResultCallback) {
	defer body.Close()

	decoder := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				cb.OnComplete()
				return
			}
			cb.OnError(fmt.Errorf("failed to decode engine response: %w", err))
			return
		}

		if msg.Error != nil {
			cb.OnError(msg.Error)
			return
		}
		if msg.ErrorMessage != "" {
			cb.OnError(errors.New(msg.ErrorMessage))
			return
		}
		cb.OnNext(msg)
	}
}

// syncCallback turns the stream into a single blocking result.
// The first terminal event wins; later ones are dropped.
type syncCallback struct {
	logger *zap.Logger
	once   sync.Once
	done   chan struct{}
	err    error
	closer io.Closer
}

func newSyncCallback(logger *zap.Logger) *syncCallback {
	return &syncCallback{
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *syncCallback) OnStart(closer io.Closer) {
	c.closer = closer
}

func (c *syncCallback) OnNext(msg jsonmessage.JSONMessage) {
	line := strings.TrimSpace(msg.Stream)
	if line == "" {
		line = strings.TrimSpace(msg.Status)
	}
	if line == "" {
		return
	}
	c.logger.Debug("Engine progress", zap.String("id", msg.ID), zap.String("message", line))
}

func (c *syncCallback) OnError(err error) {
	c.resolve(err)
}

func (c *syncCallback) OnComplete() {
	c.resolve(nil)
}

func (c *syncCallback) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Await blocks until the stream resolves or ctx is done.
// Cancelling ctx closes the stream so the pump goroutine exits.
func (c *syncCallback) Await(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		if c.closer != nil {
			_ = c.closer.Close()
		}
		return ctx.Err()
	}
}
