package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/health"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/state"
)

func TestNew(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.NotNil(t, srv)
	assert.NotNil(t, srv.GetRouter())
	assert.NotNil(t, srv.errorHandler)
}

func TestServerStartShutdown(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	healthMgr := health.NewManager(logger.NewNullLogger())
	healthMgr.Register(okChecker{})

	srv := New(&config.ServerConfig{
		ListenAddr:      "127.0.0.1",
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}, nil, log, healthMgr, state.NewStore(nil))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerStartBadAddr(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	healthMgr := health.NewManager(logger.NewNullLogger())

	srv := New(&config.ServerConfig{
		ListenAddr: "256.0.0.1",
		Port:       80,
	}, nil, log, healthMgr, state.NewStore(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := srv.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug server failed")
}
