package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndHelpersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
	assert.True(t, Enabled())

	IncAttempt("retried")
	IncAttempt("retried")
	IncSpawn("initial")
	RecordLivenessCheck(true)
	RecordLivenessCheck(false)
	SetAttemptsMade(3)
	RecordStateTransition("", "launching")
	RecordStateTransition("launching", "awaiting_exit")

	assert.Equal(t, 2.0, valueOf(t, attempts.WithLabelValues("retried")))
	assert.Equal(t, 1.0, valueOf(t, spawns.WithLabelValues("initial")))
	assert.Equal(t, 1.0, valueOf(t, livenessChecks.WithLabelValues("live")))
	assert.Equal(t, 3.0, valueOf(t, attemptsMade))
	assert.Equal(t, 0.0, valueOf(t, currentState.WithLabelValues("launching")))
	assert.Equal(t, 1.0, valueOf(t, currentState.WithLabelValues("awaiting_exit")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"waitforme_launcher_attempts_total",
		"waitforme_launcher_spawns_total",
		"waitforme_launcher_liveness_checks_total",
		"waitforme_launcher_state_transitions_total",
		"waitforme_launcher_current_state",
		"waitforme_launcher_attempts_made",
	} {
		assert.True(t, names[n], n)
	}
}

func valueOf(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestRegister_AlreadyRegisteredIsTolerated(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(spawns))
	require.NoError(t, Register(reg))
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	require.NoError(t, Register(prometheus.DefaultRegisterer))
	IncSpawn("manual")

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), "waitforme_launcher_spawns_total"))
}

func TestSampleImages_FindsSelf(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)
	name := filepath.Base(exe)
	if len(name) >= 15 {
		t.Skip("process name truncated by the kernel")
	}
	samples, err := SampleImages(context.Background(), []string{strings.ToUpper(name)})
	require.NoError(t, err)
	found := false
	for _, s := range samples {
		if int(s.PID) == os.Getpid() {
			found = true
			assert.Greater(t, s.MemoryRSS, uint64(0))
		}
	}
	assert.True(t, found)
}

func TestSampleImages_None(t *testing.T) {
	samples, err := SampleImages(context.Background(), []string{"no-such-image-xyz.exe"})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
