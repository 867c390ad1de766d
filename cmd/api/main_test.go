package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/kakitori/kakitori-api/internal/infrastructure/http"
	"github.com/kakitori/kakitori-api/internal/infrastructure/queue"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return port
}

func TestServe_DispatcherOutlivesDrain(t *testing.T) {
	dispatcher := queue.NewDispatcher(2, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entered := make(chan struct{})
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/upsert", func(c echo.Context) error {
		close(entered)
		// Shutdown has been requested; the upsert still has to go through.
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		err := dispatcher.Do(c.Request().Context(), "u\x00kanji\x00七", func(context.Context) error { return nil })
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.String(http.StatusOK, "ok")
	})

	port := freePort(t)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, httpserver.NewServer(e, port, zerolog.Nop()), dispatcher) }()
	require.Eventually(t, func() bool { return e.ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	type result struct {
		code int
		body string
		err  error
	}
	resp := make(chan result, 1)
	go func() {
		r, err := http.Post("http://127.0.0.1:"+port+"/upsert", "text/plain", nil)
		if err != nil {
			resp <- result{err: err}
			return
		}
		defer r.Body.Close()
		b, _ := io.ReadAll(r.Body)
		resp <- result{code: r.StatusCode, body: string(b)}
	}()

	<-entered
	cancel()

	select {
	case got := <-resp:
		require.NoError(t, got.err)
		assert.Equal(t, http.StatusOK, got.code, got.body)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	// Workers stop once the server has drained.
	assert.Eventually(t, func() bool {
		return dispatcher.Do(context.Background(), "k", func(context.Context) error { return nil }) == queue.ErrStopped
	}, 2*time.Second, 10*time.Millisecond)
}
