package risk

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/i474232898/agri-risk-engine/internal/risk"

// DefaultSourceTimeout bounds each source fetch when no timeout is configured.
const DefaultSourceTimeout = 10 * time.Second

// Fetch outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomePanic    = "panic"
	OutcomeDisabled = "disabled"
)

// Cache memoizes successful source fetches.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Recorder receives service metrics.
type Recorder interface {
	ObserveFetch(source, outcome string, d time.Duration)
	ObserveAssessment(level string, d time.Duration)
}

// Locator resolves coordinates to a human-readable place name.
type Locator interface {
	Place(ctx context.Context, loc Location) (string, error)
}

// Availability reports which sources produced data for a request.
type Availability map[SourceKind]bool

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables payload caching.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithRecorder enables metrics.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.metrics = r }
}

// WithLocator enables reverse geocoding of the request location.
func WithLocator(l Locator) ServiceOption {
	return func(s *Service) { s.locator = l }
}

// WithClock overrides the wall clock.
func WithClock(c clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSourceTimeout sets the independent per-source deadline.
func WithSourceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service fetches the four sources concurrently and evaluates them with the Engine.
type Service struct {
	engine  *Engine
	sources Sources
	logger  *zap.Logger
	cache   Cache
	metrics Recorder
	locator Locator
	clock   clockwork.Clock
	tracer  trace.Tracer
	timeout time.Duration
}

// NewService creates a Service.
func NewService(engine *Engine, sources Sources, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		engine:  engine,
		sources: sources,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		tracer:  otel.Tracer(tracerName),
		timeout: DefaultSourceTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the crop registry used for validation.
func (s *Service) Registry() *Registry {
	return s.engine.Registry()
}

// Assess validates the request, fetches every source with partial-failure
// semantics and evaluates the result. Validation failures return a
// *ValidationError before any source is contacted; anything unexpected returns a
// *FatalError alongside an assessment with Success false.
func (s *Service) Assess(ctx context.Context, req Request) (Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "risk.Assess", trace.WithAttributes(
		attribute.String("crop", req.Crop),
		attribute.Float64("latitude", req.Latitude),
		attribute.Float64("longitude", req.Longitude),
	))
	defer span.End()

	if err := req.Validate(s.Registry()); err != nil {
		s.logger.Info("rejected risk request", zap.Error(err))
		span.SetStatus(codes.Error, "invalid request")
		return Assessment{}, err
	}
	started := s.clock.Now()

	var (
		in    = Inputs{Request: req}
		place string
	)
	err := s.guard(func() error {
		var g errgroup.Group
		loc, period := req.Location(), req.Period()

		var raws sync.Map
		s.goFetchRaw(ctx, &g, &raws, loc, period)

		if s.sources.Historical != nil {
			g.Go(func() error {
				crop := Crop(req.Crop)
				key := historicalCacheKey(s.sources.Historical.Name(), loc, crop)
				rec, err := fetchWith(ctx, s, SourceHistorical, s.sources.Historical.Name(), key,
					func(ctx context.Context) (HistoricalRecord, error) {
						return s.sources.Historical.FetchHistorical(ctx, crop, loc)
					})
				if err == nil {
					in.Historical = &rec
				}
				return nil
			})
		} else {
			s.record(SourceHistorical, OutcomeDisabled, 0)
		}

		if s.locator != nil {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(ctx, s.timeout)
				defer cancel()
				p, err := s.locator.Place(ctx, loc)
				if err != nil {
					s.logger.Debug("reverse geocoding failed", zap.Error(err))
					return nil
				}
				place = p
				return nil
			})
		}

		_ = g.Wait()

		in.Raw = make(map[SourceKind]RawPayload, 3)
		raws.Range(func(k, v any) bool {
			in.Raw[k.(SourceKind)] = v.(RawPayload)
			return true
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source fetch failed")
		return s.fail(err)
	}

	var out Assessment
	_, evalSpan := s.tracer.Start(ctx, "risk.Evaluate")
	err = s.guard(func() error {
		var evalErr error
		out, evalErr = s.engine.Evaluate(in)
		return evalErr
	})
	evalSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Assessment{}, err
		}
		return s.fail(err)
	}

	out.ID = uuid.NewString()
	out.GeneratedAt = s.clock.Now().UTC()
	out.Location.Place = place
	span.SetAttributes(
		attribute.String("assessment.id", out.ID),
		attribute.String("risk_level", string(out.RiskLevel)),
	)

	if s.metrics != nil {
		s.metrics.ObserveAssessment(string(out.RiskLevel), s.clock.Since(started))
	}
	s.logger.Info("risk assessment complete",
		zap.String("id", out.ID),
		zap.String("crop", out.Crop),
		zap.String("risk_level", string(out.RiskLevel)),
		zap.Int("alerts", len(out.Alerts)),
	)
	return out, nil
}

// Features fetches the weather, precipitation and vegetation sources for a window
// and returns the derived feature sequence.
func (s *Service) Features(ctx context.Context, w Window) ([]FeatureVector, Availability, error) {
	ctx, span := s.tracer.Start(ctx, "risk.Features")
	defer span.End()

	if err := w.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid window")
		return nil, nil, err
	}

	var (
		fvs   []FeatureVector
		avail Availability
	)
	err := s.guard(func() error {
		var g errgroup.Group
		var raws sync.Map
		s.goFetchRaw(ctx, &g, &raws, w.Location(), w.Period())
		_ = g.Wait()

		raw := make(map[SourceKind]RawPayload, 3)
		raws.Range(func(k, v any) bool {
			raw[k.(SourceKind)] = v.(RawPayload)
			return true
		})

		norm := s.engine.normalizer.Normalize(raw, w.Period())
		fvs = DeriveFeaturesWindow(norm.Observations, s.engine.window)
		avail = Availability(availability(Inputs{Raw: raw}, norm))
		delete(avail, SourceHistorical)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feature derivation failed")
		s.logger.Error("feature derivation failed", zap.Error(err))
		return nil, nil, err
	}
	return fvs, avail, nil
}

func (s *Service) goFetchRaw(ctx context.Context, g *errgroup.Group, into *sync.Map, loc Location, period Period) {
	type rawFetch struct {
		kind SourceKind
		name string
		fn   func(context.Context) (RawPayload, error)
	}
	var fetches []rawFetch
	if src := s.sources.Weather; src != nil {
		fetches = append(fetches, rawFetch{SourceWeather, src.Name(), func(ctx context.Context) (RawPayload, error) {
			return src.FetchWeather(ctx, loc, period)
		}})
	} else {
		s.record(SourceWeather, OutcomeDisabled, 0)
	}
	if src := s.sources.Precipitation; src != nil {
		fetches = append(fetches, rawFetch{SourcePrecipitation, src.Name(), func(ctx context.Context) (RawPayload, error) {
			return src.FetchPrecipitation(ctx, loc, period)
		}})
	} else {
		s.record(SourcePrecipitation, OutcomeDisabled, 0)
	}
	if src := s.sources.Vegetation; src != nil {
		fetches = append(fetches, rawFetch{SourceVegetation, src.Name(), func(ctx context.Context) (RawPayload, error) {
			return src.FetchVegetation(ctx, loc, period)
		}})
	} else {
		s.record(SourceVegetation, OutcomeDisabled, 0)
	}

	for _, f := range fetches {
		f := f
		g.Go(func() error {
			payload, err := fetchWith(ctx, s, f.kind, f.name, cacheKey(f.kind, f.name, loc, period), f.fn)
			if err == nil {
				into.Store(f.kind, payload)
			}
			return nil
		})
	}
}

// fetchWith runs fn under the per-source timeout, consulting the cache first. Errors,
// timeouts and panics are logged and returned as ErrSourceUnavailable. Substituted
// answers are returned but not cached, so the configured source is retried next time.
func fetchWith[T any](ctx context.Context, s *Service, kind SourceKind, name, key string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "risk.fetch", trace.WithAttributes(
		attribute.String("source", string(kind)),
		attribute.String("provider", name),
	))
	defer span.End()

	var zero T
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(T); ok {
				s.record(kind, OutcomeCached, 0)
				span.SetAttributes(attribute.String("outcome", OutcomeCached))
				return cached, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		val     T
		err     error
		panicky bool
	}
	started := s.clock.Now()
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r), panicky: true}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}
	elapsed := s.clock.Since(started)

	if res.err != nil {
		outcome := OutcomeError
		switch {
		case res.panicky:
			outcome = OutcomePanic
		case errors.Is(res.err, context.DeadlineExceeded):
			outcome = OutcomeTimeout
		}
		s.record(kind, outcome, elapsed)
		span.SetAttributes(attribute.String("outcome", outcome))
		span.RecordError(res.err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Warn("source unavailable",
			zap.String("source", string(kind)),
			zap.String("provider", name),
			zap.String("outcome", outcome),
			zap.Error(res.err),
		)
		return zero, Unavailable(kind, res.err)
	}

	s.record(kind, OutcomeOK, elapsed)
	span.SetAttributes(attribute.String("outcome", OutcomeOK))
	if s.cache != nil && !substituted(res.val) {
		s.cache.Set(key, res.val)
	}
	return res.val, nil
}

func substituted(v any) bool {
	switch x := v.(type) {
	case RawPayload:
		return x.Substituted
	case HistoricalRecord:
		return x.Substituted
	}
	return false
}

func (s *Service) record(kind SourceKind, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveFetch(string(kind), outcome, d)
	}
}

// guard converts a panic in fn into a *FatalError.
func (s *Service) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic during risk analysis",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = &FatalError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}

func (s *Service) fail(err error) (Assessment, error) {
	var fe *FatalError
	if !errors.As(err, &fe) {
		fe = &FatalError{Cause: err}
	}
	if s.metrics != nil {
		s.metrics.ObserveAssessment("failed", 0)
	}
	return Assessment{Success: false}, fe
}

func cacheKey(kind SourceKind, provider string, loc Location, p Period) string {
	return fmt.Sprintf("%s|%s|%.4f|%.4f|%s|%s", kind, provider, loc.Lat, loc.Lon, DateKey(p.Start), DateKey(p.End))
}

// historicalCacheKey omits the period: yield history depends only on crop and place.
func historicalCacheKey(provider string, loc Location, crop Crop) string {
	return fmt.Sprintf("%s|%s|%.4f|%.4f|%s", SourceHistorical, provider, loc.Lat, loc.Lon, crop)
}
