package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cyclescope-go/internal/config"
)

// The run function wires collaborators that need live backends, so these
// tests cover the pieces around it: configuration defaults, server
// construction and the shutdown plumbing.

func TestConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 4000, cfg.Engine.WindowSize)
	assert.Equal(t, 100, cfg.Engine.MinWavelength)
	assert.Equal(t, 800, cfg.Engine.MaxWavelength)
	assert.InDelta(t, 0.10, cfg.Engine.BandwidthPct, 1e-9)
	assert.Equal(t, "cyclescope", cfg.Cache.Prefix)
	assert.Equal(t, "cyclescope-api", cfg.Telemetry.ServiceName)
}

func TestHTTPServerConstruction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", 8080),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, router, srv.Handler)
	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

func TestShutdownContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.After(time.Now()))
	assert.True(t, deadline.Before(time.Now().Add(31*time.Second)))
}

func TestSignalChannel(t *testing.T) {
	quit := make(chan os.Signal, 1)
	assert.Equal(t, 1, cap(quit))

	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		assert.NotNil(t, sig)
	}
}

func TestServerClosedIsNotAFailure(t *testing.T) {
	// The ListenAndServe goroutine treats ErrServerClosed as a clean exit.
	assert.Equal(t, "http: Server closed", http.ErrServerClosed.Error())
	assert.NotEqual(t, http.ErrServerClosed, fmt.Errorf("different error"))
}
