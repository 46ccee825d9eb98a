package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	done chan struct{}
	err  error
}

func (e *fakeEngine) Done() <-chan struct{} { return e.done }
func (e *fakeEngine) Err() error            { return e.err }

func newTestApp(t *testing.T, engine Engine) (*App, net.Listener) {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, handler, ln.Addr().String(), engine, nil, time.Second), ln
}

func waitServing(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_StopsOnContextCancel(t *testing.T) {
	engine := &fakeEngine{done: make(chan struct{})}
	a, ln := newTestApp(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx, ln) }()
	waitServing(t, ln.Addr().String())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_FailsWhenEngineDies(t *testing.T) {
	engine := &fakeEngine{done: make(chan struct{}), err: errors.New("worker panic: boom")}
	a, ln := newTestApp(t, engine)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(context.Background(), ln) }()
	waitServing(t, ln.Addr().String())

	close(engine.done)
	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEngineDied)
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}

	_, err := http.Get("http://" + ln.Addr().String())
	assert.Error(t, err)
}

func TestApp_WithoutEngine(t *testing.T) {
	a, ln := newTestApp(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx, ln) }()
	waitServing(t, ln.Addr().String())
	cancel()

	assert.NoError(t, <-errCh)
}
