package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"memberhub/internal/platform/config"
)

func TestNewAppliesConfiguredTimeouts(t *testing.T) {
	srv := New(":9090", http.NewServeMux(), config.HTTPConfig{
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       time.Minute,
	})

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
	assert.Equal(t, 40*time.Second, srv.WriteTimeout)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
}
