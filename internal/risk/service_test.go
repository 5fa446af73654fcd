package risk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeWeather struct {
	temps []float64
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeWeather) Name() string { return "fake-weather" }

func (f *fakeWeather) FetchWeather(_ context.Context, _ Location, p Period) (RawPayload, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return RawPayload{}, f.err
	}
	out := RawPayload{Provider: f.Name(), Provenance: ProvenanceLive}
	for i, d := range p.Dates() {
		out.Set(DateKey(d), FieldTemperature, f.temps[i%len(f.temps)])
		out.Set(DateKey(d), FieldHumidity, 70)
	}
	return out, nil
}

type fakePrecip struct {
	rain []float64
	err  error
}

func (f *fakePrecip) Name() string { return "fake-precip" }

func (f *fakePrecip) FetchPrecipitation(_ context.Context, _ Location, p Period) (RawPayload, error) {
	if f.err != nil {
		return RawPayload{}, f.err
	}
	out := RawPayload{Provider: f.Name(), Provenance: ProvenanceSynthetic}
	for i, d := range p.Dates() {
		out.Set(d.Format("20060102"), FieldRainfall, f.rain[i%len(f.rain)])
	}
	return out, nil
}

type fakeVeg struct {
	ndvi  float64
	err   error
	panic bool
	block bool
}

func (f *fakeVeg) Name() string { return "fake-veg" }

func (f *fakeVeg) FetchVegetation(ctx context.Context, _ Location, p Period) (RawPayload, error) {
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return RawPayload{}, ctx.Err()
	}
	if f.err != nil {
		return RawPayload{}, f.err
	}
	out := RawPayload{Provider: f.Name(), Provenance: ProvenanceLive}
	for _, d := range p.Dates() {
		out.Set(DateKey(d), FieldNDVI, f.ndvi)
	}
	return out, nil
}

type fakeHistory struct {
	rec   HistoricalRecord
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeHistory) Name() string { return "fake-history" }

func (f *fakeHistory) FetchHistorical(context.Context, Crop, Location) (HistoricalRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.rec, f.err
}

// standInPrecip answers like a fallback that had to substitute generated data.
type standInPrecip struct{ calls int }

func (f *standInPrecip) Name() string { return "live|synthetic" }

func (f *standInPrecip) FetchPrecipitation(_ context.Context, _ Location, p Period) (RawPayload, error) {
	f.calls++
	out := RawPayload{Provider: "synthetic", Provenance: ProvenanceSynthetic, Substituted: true}
	for _, d := range p.Dates() {
		out.Set(DateKey(d), FieldRainfall, 3)
	}
	return out, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]any
}

func (c *mapCache) Get(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *mapCache) Set(k string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = v
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	levels   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}, levels: map[string]int{}}
}

func (r *countingRecorder) ObserveFetch(source, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[source+"/"+outcome]++
}

func (r *countingRecorder) ObserveAssessment(level string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[level]++
}

func newTestService(src Sources, opts ...ServiceOption) *Service {
	return NewService(NewEngine(NewRegistry(), nil), src, nil, opts...)
}

func week(crop string) Request {
	return Request{Latitude: 23.7644, Longitude: 90.3897, Crop: crop, Start: day("2024-07-01"), End: day("2024-07-07")}
}

func TestAssessScenarioFloodingRice(t *testing.T) {
	svc := newTestService(Sources{
		Weather:       &fakeWeather{temps: []float64{27}},
		Precipitation: &fakePrecip{rain: []float64{8, 8, 8, 55, 8, 8, 8}},
		Vegetation:    &fakeVeg{ndvi: 0.7},
		Historical:    &fakeHistory{rec: HistoricalRecord{Trend: TrendStable, Provenance: ProvenanceSynthetic}},
	})

	out, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, LevelHigh, out.RiskLevel)
	assert.Contains(t, out.Alerts, "🌊 Flooding risk: 55.0mm rainfall (limit: 50.0mm)")
	assert.Equal(t, "rice", out.Crop)
	assert.Equal(t, PeriodView{Start: "2024-07-01", End: "2024-07-07"}, out.Period)
	assert.Equal(t, StatusColor(LevelHigh), out.StatusColor)
	assert.NotEmpty(t, out.ID)
	assert.LessOrEqual(t, len(out.Recommendations), MaxRecommendations)
	assert.Equal(t, "💧 Improve drainage systems and avoid low-lying fields", out.Recommendations[0])
	for _, k := range SourceKinds {
		assert.True(t, out.DataSources[k], k)
	}
	assert.Equal(t, ProvenanceLive, out.Provenance[SourceWeather])
	assert.Equal(t, ProvenanceSynthetic, out.Provenance[SourcePrecipitation])
}

func TestAssessScenarioSustainedColdWheat(t *testing.T) {
	svc := newTestService(Sources{
		Weather:       &fakeWeather{temps: []float64{8, 9, 10, 9, 8, 10, 9}},
		Precipitation: &fakePrecip{rain: []float64{4}},
		Vegetation:    &fakeVeg{ndvi: 0.65},
		Historical:    &fakeHistory{rec: HistoricalRecord{Trend: TrendImproving}},
	})

	out, err := svc.Assess(context.Background(), week("wheat"))
	require.NoError(t, err)

	assert.Equal(t, LevelMedium, out.RiskLevel)
	assert.Equal(t, []string{"❄️ Sustained cold conditions: 9.0°C average"}, out.Alerts)
	assert.Equal(t, "⚠️ Moderate risks identified for wheat during Jul 01-Jul 07. 1 concern to monitor. Take precautionary measures.", out.Summary)
}

func TestAssessScenarioAllSourcesUnavailable(t *testing.T) {
	boom := errors.New("boom")
	rec := newCountingRecorder()
	svc := newTestService(Sources{
		Weather:       &fakeWeather{err: boom},
		Precipitation: &fakePrecip{err: boom},
		Vegetation:    &fakeVeg{err: boom},
		Historical:    &fakeHistory{err: boom},
	}, WithRecorder(rec))

	out, err := svc.Assess(context.Background(), week("potato"))
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, LevelMedium, out.RiskLevel)
	assert.Equal(t, []string{
		"⚠️ Weather data unavailable",
		"⚠️ Precipitation data unavailable",
		"⚠️ Vegetation data unavailable",
		"⚠️ Historical data unavailable",
	}, out.Alerts)
	for _, k := range SourceKinds {
		assert.False(t, out.DataSources[k], k)
		assert.Equal(t, ProvenanceNone, out.Provenance[k])
	}
	assert.Equal(t, 1, rec.outcomes["weather/error"])
	assert.Equal(t, 1, rec.outcomes["historical/error"])
	assert.Equal(t, 1, rec.levels["medium"])
}

func TestAssessNilSourcesAreUnavailable(t *testing.T) {
	out, err := newTestService(Sources{}).Assess(context.Background(), week("corn"))
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, out.RiskLevel)
	assert.Len(t, out.Alerts, 4)
}

func TestAssessPartialFailureDegradesOneCategory(t *testing.T) {
	svc := newTestService(Sources{
		Weather:       &fakeWeather{temps: []float64{25}},
		Precipitation: &fakePrecip{rain: []float64{6}},
		Vegetation:    &fakeVeg{panic: true},
		Historical:    &fakeHistory{rec: HistoricalRecord{Trend: TrendStable}},
	})

	out, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)
	assert.False(t, out.DataSources[SourceVegetation])
	assert.True(t, out.DataSources[SourceWeather])
	assert.Equal(t, []string{"⚠️ Vegetation data unavailable"}, out.Alerts)
	assert.Equal(t, LevelMedium, out.RiskLevel)
}

func TestAssessSourceTimeoutIsIndependent(t *testing.T) {
	rec := newCountingRecorder()
	svc := newTestService(Sources{
		Weather:       &fakeWeather{temps: []float64{25}},
		Precipitation: &fakePrecip{rain: []float64{6}},
		Vegetation:    &fakeVeg{block: true},
	}, WithSourceTimeout(20*time.Millisecond), WithRecorder(rec))

	out, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)
	assert.False(t, out.DataSources[SourceVegetation])
	assert.True(t, out.DataSources[SourcePrecipitation])
	assert.Equal(t, 1, rec.outcomes["vegetation/timeout"])
	assert.Equal(t, 1, rec.outcomes["historical/disabled"])
}

func TestAssessRejectsInvalidRequestBeforeFetching(t *testing.T) {
	w := &fakeWeather{temps: []float64{25}}
	svc := newTestService(Sources{Weather: w})

	req := week("rice")
	req.End = req.Start.AddDate(0, 0, 31)
	_, err := svc.Assess(context.Background(), req)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "end", ve.Field)
	assert.Equal(t, 0, w.calls)
}

func TestAssessUsesCache(t *testing.T) {
	w := &fakeWeather{temps: []float64{25}}
	cache := &mapCache{m: map[string]any{}}
	svc := newTestService(Sources{Weather: w}, WithCache(cache))

	_, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)
	_, err = svc.Assess(context.Background(), week("wheat"))
	require.NoError(t, err)

	assert.Equal(t, 1, w.calls)
}

func TestAssessDoesNotCacheSubstitutedPayloads(t *testing.T) {
	p := &standInPrecip{}
	cache := &mapCache{m: map[string]any{}}
	svc := newTestService(Sources{Precipitation: p}, WithCache(cache))

	for i := 0; i < 2; i++ {
		out, err := svc.Assess(context.Background(), week("rice"))
		require.NoError(t, err)
		assert.Equal(t, ProvenanceSynthetic, out.Provenance[SourcePrecipitation])
	}

	assert.Equal(t, 2, p.calls)
	assert.Empty(t, cache.m)
}

func TestAssessCachesHistoricalAcrossPeriods(t *testing.T) {
	h := &fakeHistory{rec: HistoricalRecord{Trend: TrendStable}}
	rec := newCountingRecorder()
	svc := newTestService(Sources{Historical: h}, WithCache(&mapCache{m: map[string]any{}}), WithRecorder(rec))

	first := week("rice")
	second := week("rice")
	second.Start, second.End = day("2024-08-01"), day("2024-08-10")

	_, err := svc.Assess(context.Background(), first)
	require.NoError(t, err)
	_, err = svc.Assess(context.Background(), second)
	require.NoError(t, err)
	_, err = svc.Assess(context.Background(), week("wheat"))
	require.NoError(t, err)

	assert.Equal(t, 2, h.calls, "one fetch per crop")
	assert.Equal(t, 1, rec.outcomes["historical/cached"])
}

func TestAssessTracesFetches(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	svc := newTestService(Sources{
		Weather:    &fakeWeather{temps: []float64{25}},
		Vegetation: &fakeVeg{err: errors.New("down")},
	}, WithTracerProvider(tp))

	_, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)

	spans := map[string]sdktrace.ReadOnlySpan{}
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		switch s.Name() {
		case "risk.Assess":
			root = s
		case "risk.fetch":
			for _, kv := range s.Attributes() {
				if kv.Key == "source" {
					spans[kv.Value.AsString()] = s
				}
			}
		}
	}
	require.NotNil(t, root)
	require.Contains(t, spans, "weather")
	require.Contains(t, spans, "vegetation")
	assert.Equal(t, root.SpanContext().TraceID(), spans["weather"].SpanContext().TraceID())
	assert.Equal(t, codes.Unset, spans["weather"].Status().Code)
	assert.Equal(t, codes.Error, spans["vegetation"].Status().Code)
}

func TestAssessStampsClockAndPlace(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(Sources{}, WithClock(clock), WithLocator(locatorFunc(func(context.Context, Location) (string, error) {
		return "Dhaka, Bangladesh", nil
	})))

	out, err := svc.Assess(context.Background(), week("rice"))
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), out.GeneratedAt)
	assert.Equal(t, "Dhaka, Bangladesh", out.Location.Place)
}

type locatorFunc func(context.Context, Location) (string, error)

func (f locatorFunc) Place(ctx context.Context, loc Location) (string, error) { return f(ctx, loc) }

func TestGuardRecoversPanicAsFatal(t *testing.T) {
	svc := newTestService(Sources{})
	err := svc.guard(func() error { panic("kaboom") })

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Error(), "kaboom")

	out, err := svc.fail(err)
	assert.False(t, out.Success)
	assert.True(t, errors.As(err, &fe))
}

func TestFeatures(t *testing.T) {
	svc := newTestService(Sources{
		Weather:       &fakeWeather{temps: []float64{20, 22, 24}},
		Precipitation: &fakePrecip{err: errors.New("down")},
	})

	w := Window{Latitude: 10, Longitude: 20, Start: day("2024-07-01"), End: day("2024-07-03")}
	fvs, avail, err := svc.Features(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, fvs, 3)
	assert.InDelta(t, 22, fvs[2].TempRollingMean, 1e-9)
	assert.True(t, avail[SourceWeather])
	assert.False(t, avail[SourcePrecipitation])
	_, hasHistorical := avail[SourceHistorical]
	assert.False(t, hasHistorical)
}

func TestEngineEvaluateIndices(t *testing.T) {
	eng := NewEngine(NewRegistry(), nil)
	raw := map[SourceKind]RawPayload{
		SourceWeather: {Days: map[string]DayValues{
			"2024-07-01": {FieldTemperature: 20},
			"2024-07-02": {FieldTemperature: 30},
		}},
	}
	req := Request{Latitude: 1, Longitude: 1, Crop: "rice", Start: day("2024-07-01"), End: day("2024-07-02")}

	out, err := eng.Evaluate(Inputs{Request: req, Raw: raw})
	require.NoError(t, err)
	assert.InDelta(t, 30, out.Indices.TotalGDD, 1e-9)
	assert.InDelta(t, 25, out.Indices.TempRollingMean, 1e-9)
	assert.Equal(t, 2, out.Indices.MaxConsecutiveDryDays)
	assert.True(t, out.DataSources[SourceWeather])
	assert.False(t, out.DataSources[SourceVegetation])
}
