package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthAllHealthy(t *testing.T) {
	hc := NewHealthChecker("1.0.0", "pki")
	hc.Report("pki", true, "")
	hc.Report("sessions", true, "")

	rep := hc.Health()
	require.Equal(t, "healthy", rep.Status)
	require.Equal(t, "1.0.0", rep.Version)
	require.Len(t, rep.Components, 2)
}

func TestHealthOneUnhealthy(t *testing.T) {
	hc := NewHealthChecker("", "pki")
	hc.Report("sessions", true, "")
	hc.Report("pki", false, "store load failed")

	rep := hc.Health()
	require.Equal(t, "unhealthy", rep.Status)
	require.Equal(t, "unhealthy: store load failed", rep.Components["pki"])
}

func TestReadinessRequiresEveryCriticalReport(t *testing.T) {
	hc := NewHealthChecker("", "pki", "dispatcher")
	hc.Report("pki", true, "")
	// dispatcher has not reported yet

	rep := hc.Readiness()
	require.Equal(t, "not_ready", rep.Status)
	require.Equal(t, "dispatcher has not reported", rep.Reason)
	require.Equal(t, "not reported", rep.Components["dispatcher"])

	hc.Report("dispatcher", true, "")
	require.Equal(t, "ready", hc.Readiness().Status)
}

func TestReadinessCriticalUnhealthy(t *testing.T) {
	hc := NewHealthChecker("", "pki")
	hc.Report("pki", false, "trust store not loaded")

	rep := hc.Readiness()
	require.Equal(t, "not_ready", rep.Status)
	require.Equal(t, "not ready: trust store not loaded", rep.Components["pki"])
}

func TestReadinessIgnoresNonCriticalFailures(t *testing.T) {
	hc := NewHealthChecker("", "pki")
	hc.Report("pki", true, "")
	hc.Report("audit", false, "disk full")

	require.Equal(t, "ready", hc.Readiness().Status)
	require.Equal(t, "unhealthy", hc.Health().Status)
}

func TestReportReplacesEarlierReport(t *testing.T) {
	hc := NewHealthChecker("")
	hc.Report("pki", true, "")
	hc.Report("pki", false, "reload failed")

	status, ok := hc.Component("pki")
	require.True(t, ok)
	require.False(t, status.Healthy)
	require.Equal(t, "reload failed", status.Detail)
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.Report("pki", true, "")

	w := httptest.NewRecorder()
	hc.HealthHandler()(w, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rep Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))
	require.Equal(t, "healthy", rep.Status)
	require.Equal(t, "test", rep.Version)

	hc.Report("pki", false, "broken")
	w = httptest.NewRecorder()
	hc.HealthHandler()(w, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	hc := NewHealthChecker("", "pki")

	w := httptest.NewRecorder()
	hc.ReadyHandler()(w, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	hc.Report("pki", true, "")
	w = httptest.NewRecorder()
	hc.ReadyHandler()(w, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLiveHandlerAlwaysOK(t *testing.T) {
	hc := NewHealthChecker("")

	w := httptest.NewRecorder()
	hc.LiveHandler()(w, httptest.NewRequest("GET", "/livez", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "alive", resp["status"])
	require.NotEmpty(t, resp["uptime"])
}
