package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/config"
	"rivalwatch/internal/constants"
	"rivalwatch/internal/logger"
)

func memoryConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: config.StorageConfig{
			ConfigBackend:   constants.BackendMemory,
			SnapshotBackend: constants.BackendMemory,
		},
		Fetcher: config.FetcherConfig{
			Type:    constants.FetcherTypeAPI,
			BaseURL: upstreamURL,
			Timeout: 2 * time.Second,
			Retry: config.RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   10 * time.Second,
				MaxDelay:    20 * time.Second,
			},
		},
		Fallback: config.FallbackConfig{
			Timezone:    "Asia/Seoul",
			MinProducts: 5,
			MaxProducts: 10,
		},
		Monitoring: config.MonitoringConfig{
			CompetitorConcurrency: 1,
			CheckPolicy:           "queue",
			LockBackend:           constants.LockBackendLocal,
			DefaultFrequency:      "daily",
		},
	}
}

func TestApp_ShutdownCancelsInFlightCheck(t *testing.T) {
	var once sync.Once
	upstreamHit := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(upstreamHit) })
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	app := NewApp(memoryConfig(upstream.URL), logger.NopLogger())
	require.NoError(t, app.Initialize(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := "http://" + ln.Addr().String() + constants.APIPrefix

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- app.serve(runCtx, ln) }()

	client := &http.Client{Timeout: 30 * time.Second}

	var setupResp *http.Response
	require.Eventually(t, func() bool {
		resp, err := client.Post(baseURL+"/setup", "application/json",
			strings.NewReader(`{"keyword":"k","competitors":["A"]}`))
		if err != nil {
			return false
		}
		setupResp = resp
		return true
	}, 2*time.Second, 20*time.Millisecond)
	setupResp.Body.Close()
	require.Equal(t, http.StatusOK, setupResp.StatusCode)

	type checkOutcome struct {
		status int
		err    error
	}
	checked := make(chan checkOutcome, 1)
	go func() {
		resp, err := client.Get(baseURL + "/check/k")
		if err != nil {
			checked <- checkOutcome{err: err}
			return
		}
		resp.Body.Close()
		checked <- checkOutcome{status: resp.StatusCode}
	}()

	select {
	case <-upstreamHit:
	case <-time.After(5 * time.Second):
		t.Fatal("check never reached the upstream")
	}

	// The first attempt failed and the orchestrator is now waiting out a
	// 10s backoff. Stopping the server must not wait for it.
	start := time.Now()
	cancel()

	select {
	case out := <-checked:
		require.NoError(t, out.err)
		assert.Equal(t, http.StatusRequestTimeout, out.status)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight check outlived the shutdown")
	}

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	assert.Less(t, time.Since(start), 5*time.Second)
}
