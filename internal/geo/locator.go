package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// ErrNoPlace is returned when reverse geocoding yields no address.
var ErrNoPlace = errors.New("no address for location")

type reverseFunc func(geocoder.Location) ([]geocoder.Address, error)

// Cache is the subset of store.MemoryCache the locator needs.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Locator resolves coordinates to a human readable place using the Google
// reverse geocoding API. Results are cached per rounded coordinate.
type Locator struct {
	reverse reverseFunc
	cache   Cache
}

// NewLocator configures the geocoder with apiKey. cache may be nil.
func NewLocator(apiKey string, cache Cache) *Locator {
	geocoder.ApiKey = apiKey
	return &Locator{reverse: geocoder.GeocodingReverse, cache: cache}
}

// Place returns the formatted address of the first match for loc.
func (l *Locator) Place(ctx context.Context, loc risk.Location) (string, error) {
	key := fmt.Sprintf("place|%.4f|%.4f", loc.Lat, loc.Lon)
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			if place, ok := v.(string); ok {
				return place, nil
			}
		}
	}

	type result struct {
		addrs []geocoder.Address
		err   error
	}
	// The geocoder client takes no context.
	done := make(chan result, 1)
	go func() {
		addrs, err := l.reverse(geocoder.Location{Latitude: loc.Lat, Longitude: loc.Lon})
		done <- result{addrs, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return "", fmt.Errorf("reverse geocode: %w", res.err)
	}

	for _, a := range res.addrs {
		if a.FormattedAddress != "" {
			if l.cache != nil {
				l.cache.Set(key, a.FormattedAddress)
			}
			return a.FormattedAddress, nil
		}
	}
	return "", ErrNoPlace
}
