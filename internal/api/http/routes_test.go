package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-risk-engine/internal/risk"
	"github.com/i474232898/agri-risk-engine/internal/risk/sources"
)

func newTestApp(t *testing.T, svc RiskService) *fiber.App {
	t.Helper()
	if svc == nil {
		srcs, err := sources.Build(sources.Options{Mode: sources.ModeSynthetic, Seed: 42}, nil)
		require.NoError(t, err)
		svc = risk.NewService(risk.NewEngine(risk.NewRegistry(), nil), srcs, nil)
	}
	app := fiber.New()
	RegisterRoutes(app, svc, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, status)
}

func TestRiskAlertsRejectsBadRequests(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"non-numeric latitude", "lat=north&lon=90.4&crop=rice&start=20240925&end=20241001", "lat"},
		{"latitude out of range", "lat=95&lon=90.4&crop=rice&start=20240925&end=20241001", "lat"},
		{"longitude out of range", "lat=23.7&lon=-181&crop=rice&start=20240925&end=20241001", "lon"},
		{"unknown crop", "lat=23.7&lon=90.4&crop=banana&start=20240925&end=20241001", "crop"},
		{"bad date", "lat=23.7&lon=90.4&crop=rice&start=2024/09/25&end=20241001", "start"},
		{"start after end", "lat=23.7&lon=90.4&crop=rice&start=20241005&end=20241001", "start"},
		{"period too long", "lat=23.7&lon=90.4&crop=rice&start=20240101&end=20240215", "end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, app, "/api/v1/risk-alerts?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.field, body["field"])
		})
	}
}

func TestRiskAlertsMissingParameters(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/api/v1/risk-alerts?lat=23.7&lon=90.4")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required parameters: crop, start, end", body["error"])
	assert.Equal(t, []any{"crop", "start", "end"}, body["missing"])
}

func TestRiskAlertsSynthetic(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v1/risk-alerts?lat=23.7644&lon=90.3897&crop=RICE&start=20240925&end=2024-10-01", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out risk.Assessment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "rice", out.Crop)
	assert.NotEmpty(t, out.ID)
	assert.Contains(t, []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh}, out.RiskLevel)
	assert.NotNil(t, out.Alerts)
	assert.NotEmpty(t, out.Summary)
	assert.LessOrEqual(t, len(out.Recommendations), risk.MaxRecommendations)
	assert.Equal(t, "2024-09-25", out.Period.Start)
	for _, kind := range []risk.SourceKind{risk.SourceWeather, risk.SourcePrecipitation, risk.SourceVegetation, risk.SourceHistorical} {
		assert.True(t, out.DataSources[kind], kind)
		assert.Equal(t, risk.ProvenanceSynthetic, out.Provenance[kind], kind)
	}
}

func TestCrops(t *testing.T) {
	status, body := get(t, newTestApp(t, nil), "/api/v1/crops")
	assert.Equal(t, http.StatusOK, status)
	crops, ok := body["crops"].([]any)
	require.True(t, ok)
	assert.Len(t, crops, 5)
}

func TestFeatures(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := get(t, app, "/api/v1/features?lat=23.7&lon=90.4&start=20240701&end=20240705")
	require.Equal(t, http.StatusOK, status)
	features, ok := body["features"].([]any)
	require.True(t, ok)
	assert.Len(t, features, 5)
	assert.NotContains(t, body["data_sources"], "historical")

	status, body = get(t, app, "/api/v1/features?lat=23.7&start=20240701&end=20240705")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"lon"}, body["missing"])
}

type failingService struct {
	RiskService
}

func (failingService) Assess(context.Context, risk.Request) (risk.Assessment, error) {
	return risk.Assessment{}, &risk.FatalError{Cause: errors.New("boom")}
}

func TestRiskAlertsFatal(t *testing.T) {
	status, body := get(t, newTestApp(t, failingService{}), "/api/v1/risk-alerts?lat=23.7&lon=90.4&crop=rice&start=20240925&end=20241001")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
}
