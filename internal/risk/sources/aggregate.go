package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// AggregatedWeather queries several weather sources concurrently and averages each
// field per day over the providers that reported it. It fails only when every
// provider fails.
type AggregatedWeather struct {
	sources []risk.WeatherSource
	logger  *zap.Logger
}

func NewAggregatedWeather(logger *zap.Logger, sources ...risk.WeatherSource) *AggregatedWeather {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregatedWeather{sources: sources, logger: logger}
}

func (a *AggregatedWeather) Name() string {
	return aggregateName(a.sources)
}

func (a *AggregatedWeather) FetchWeather(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	return fanOut(ctx, a.logger, risk.SourceWeather, a.sources, func(ctx context.Context, s risk.WeatherSource) (risk.RawPayload, error) {
		return s.FetchWeather(ctx, loc, period)
	})
}

// AggregatedPrecipitation is the precipitation counterpart of AggregatedWeather.
type AggregatedPrecipitation struct {
	sources []risk.PrecipitationSource
	logger  *zap.Logger
}

func NewAggregatedPrecipitation(logger *zap.Logger, sources ...risk.PrecipitationSource) *AggregatedPrecipitation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregatedPrecipitation{sources: sources, logger: logger}
}

func (a *AggregatedPrecipitation) Name() string {
	return aggregateName(a.sources)
}

func (a *AggregatedPrecipitation) FetchPrecipitation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	return fanOut(ctx, a.logger, risk.SourcePrecipitation, a.sources, func(ctx context.Context, s risk.PrecipitationSource) (risk.RawPayload, error) {
		return s.FetchPrecipitation(ctx, loc, period)
	})
}

type named interface{ Name() string }

func aggregateName[S named](sources []S) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return "aggregate(" + strings.Join(names, ",") + ")"
}

func fanOut[S named](ctx context.Context, logger *zap.Logger, kind risk.SourceKind, sources []S, fetch func(context.Context, S) (risk.RawPayload, error)) (risk.RawPayload, error) {
	if len(sources) == 0 {
		return risk.RawPayload{}, fmt.Errorf("no %s providers configured", kind)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		payloads []risk.RawPayload
		errs     []error
	)
	for _, s := range sources {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()

			p, err := fetch(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Partial success is fine; only log.
				logger.Warn("provider failed",
					zap.String("source", string(kind)),
					zap.String("provider", s.Name()),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				return
			}
			payloads = append(payloads, p)
		}()
	}
	wg.Wait()

	if len(payloads) == 0 {
		return risk.RawPayload{}, errors.Join(errs...)
	}
	return AggregatePayloads(payloads), nil
}

// AggregatePayloads merges payloads day by day. Numeric fields are averaged, wind
// direction by its vector mean. Provenance is chosen by majority, or the first
// payload's on a tie. Day keys that do not parse are kept verbatim so the
// normalizer can report them.
func AggregatePayloads(payloads []risk.RawPayload) risk.RawPayload {
	if len(payloads) == 1 {
		return payloads[0]
	}

	type acc struct {
		sum   float64
		u, v  float64
		count int
	}
	days := make(map[string]map[risk.Field]*acc)
	provCounts := make(map[risk.Provenance]int)
	providers := make([]string, 0, len(payloads))

	for _, p := range payloads {
		provCounts[p.Provenance]++
		providers = append(providers, p.Provider)

		for key, values := range p.Days {
			k := key
			if day, err := risk.ParseDate(key); err == nil {
				k = risk.DateKey(day)
			}
			fields, ok := days[k]
			if !ok {
				fields = make(map[risk.Field]*acc)
				days[k] = fields
			}
			for f, val := range values {
				a, ok := fields[f]
				if !ok {
					a = &acc{}
					fields[f] = a
				}
				a.count++
				if f == risk.FieldWindDirection {
					rad := val * math.Pi / 180
					a.u += math.Cos(rad)
					a.v += math.Sin(rad)
					continue
				}
				a.sum += val
			}
		}
	}

	best := payloads[0].Provenance
	for _, p := range payloads {
		if provCounts[p.Provenance] > provCounts[best] {
			best = p.Provenance
		}
	}

	out := risk.RawPayload{Provider: strings.Join(providers, "+"), Provenance: best}
	for day, fields := range days {
		for f, a := range fields {
			if f == risk.FieldWindDirection {
				deg := math.Atan2(a.v, a.u) * 180 / math.Pi
				if deg < 0 {
					deg += 360
				}
				out.Set(day, f, deg)
				continue
			}
			out.Set(day, f, a.sum/float64(a.count))
		}
	}
	return out
}
