package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// Fallback tries a live source and falls back to a secondary one, usually
// synthetic, when it fails. The secondary payload keeps its own provenance tag
// so callers can tell real data from generated data, and is flagged Substituted.
type Fallback struct {
	primary   any
	secondary any
	logger    *zap.Logger
}

// NewFallback pairs two sources of the same kind. Only the methods both sources
// implement will succeed; the others report the missing capability as an error.
func NewFallback(primary, secondary any, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string {
	return nameOf(f.primary) + "|" + nameOf(f.secondary)
}

func nameOf(s any) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "none"
}

func (f *Fallback) FetchWeather(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	return withFallback(ctx, f, risk.SourceWeather, func(ctx context.Context, s any) (risk.RawPayload, error) {
		src, ok := s.(risk.WeatherSource)
		if !ok {
			return risk.RawPayload{}, errNotSupported(s, risk.SourceWeather)
		}
		return src.FetchWeather(ctx, loc, period)
	})
}

func (f *Fallback) FetchPrecipitation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	return withFallback(ctx, f, risk.SourcePrecipitation, func(ctx context.Context, s any) (risk.RawPayload, error) {
		src, ok := s.(risk.PrecipitationSource)
		if !ok {
			return risk.RawPayload{}, errNotSupported(s, risk.SourcePrecipitation)
		}
		return src.FetchPrecipitation(ctx, loc, period)
	})
}

func (f *Fallback) FetchVegetation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	return withFallback(ctx, f, risk.SourceVegetation, func(ctx context.Context, s any) (risk.RawPayload, error) {
		src, ok := s.(risk.VegetationSource)
		if !ok {
			return risk.RawPayload{}, errNotSupported(s, risk.SourceVegetation)
		}
		return src.FetchVegetation(ctx, loc, period)
	})
}

func (f *Fallback) FetchHistorical(ctx context.Context, crop risk.Crop, loc risk.Location) (risk.HistoricalRecord, error) {
	return withFallback(ctx, f, risk.SourceHistorical, func(ctx context.Context, s any) (risk.HistoricalRecord, error) {
		src, ok := s.(risk.HistoricalSource)
		if !ok {
			return risk.HistoricalRecord{}, errNotSupported(s, risk.SourceHistorical)
		}
		return src.FetchHistorical(ctx, crop, loc)
	})
}

func withFallback[T any](ctx context.Context, f *Fallback, kind risk.SourceKind, call func(context.Context, any) (T, error)) (T, error) {
	pctx, cancel := primaryContext(ctx)
	v, err := call(pctx, f.primary)
	cancel()
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, ctx.Err()
	}
	f.logger.Warn("primary source failed; using fallback",
		zap.String("source", string(kind)),
		zap.String("provider", nameOf(f.primary)),
		zap.String("fallback", nameOf(f.secondary)),
		zap.Error(err),
	)
	v, err = call(ctx, f.secondary)
	if err != nil {
		return v, err
	}
	switch p := any(&v).(type) {
	case *risk.RawPayload:
		p.Substituted = true
	case *risk.HistoricalRecord:
		p.Substituted = true
	}
	return v, nil
}

// primaryContext gives the primary source half of the remaining deadline so the
// secondary can still answer when the primary is merely slow.
func primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}

type unsupportedError struct {
	provider string
	kind     risk.SourceKind
}

func (e unsupportedError) Error() string {
	return e.provider + " does not provide " + string(e.kind) + " data"
}

func errNotSupported(s any, kind risk.SourceKind) error {
	return unsupportedError{provider: nameOf(s), kind: kind}
}
