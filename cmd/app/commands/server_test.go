package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	startErr    error
	shutdownErr error
	stopped     chan struct{}
	shutdowns   atomic.Int32
}

func newFakeServer() *fakeServer {
	return &fakeServer{stopped: make(chan struct{})}
}

func (s *fakeServer) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopped
	return nil
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	if s.shutdowns.Add(1) == 1 {
		close(s.stopped)
	}
	return s.shutdownErr
}

type fakeWorker struct {
	err     error
	stopped atomic.Bool
}

func (w *fakeWorker) Start(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	<-ctx.Done()
	w.stopped.Store(true)
	return ctx.Err()
}

func runServe(t *testing.T, ctx context.Context, servers []Server, workers []Runner) error {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, logger, time.Second, servers, workers)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServe(t *testing.T) {
	t.Run("cancellation stops everything", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		webhook, admin := newFakeServer(), newFakeServer()
		worker := &fakeWorker{}

		time.AfterFunc(50*time.Millisecond, cancel)
		err := runServe(t, ctx, []Server{webhook, admin}, []Runner{worker})

		require.NoError(t, err)
		assert.Equal(t, int32(1), webhook.shutdowns.Load())
		assert.Equal(t, int32(1), admin.shutdowns.Load())
		assert.True(t, worker.stopped.Load())
	})

	t.Run("server failure shuts down the others", func(t *testing.T) {
		startErr := errors.New("address already in use")
		failing := &fakeServer{startErr: startErr, stopped: make(chan struct{})}
		healthy := newFakeServer()
		worker := &fakeWorker{}

		err := runServe(t, context.Background(), []Server{failing, healthy}, []Runner{worker})

		assert.ErrorIs(t, err, startErr)
		assert.Equal(t, int32(1), healthy.shutdowns.Load())
		assert.True(t, worker.stopped.Load())
	})

	t.Run("worker failure", func(t *testing.T) {
		workerErr := errors.New("queue unavailable")
		server := newFakeServer()

		err := runServe(t, context.Background(), []Server{server}, []Runner{&fakeWorker{err: workerErr}})

		assert.ErrorIs(t, err, workerErr)
		assert.Equal(t, int32(1), server.shutdowns.Load())
	})

	t.Run("shutdown error is reported", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		shutdownErr := errors.New("deadline exceeded")
		server := newFakeServer()
		server.shutdownErr = shutdownErr

		time.AfterFunc(50*time.Millisecond, cancel)
		err := runServe(t, ctx, []Server{server}, []Runner{&fakeWorker{}})

		assert.ErrorIs(t, err, shutdownErr)
		assert.ErrorContains(t, err, "server shutdown")
	})
}
