package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-risk-engine/internal/config"
	"github.com/i474232898/agri-risk-engine/internal/risk"
)

type recordingAssessor struct {
	mu   sync.Mutex
	reqs []risk.Request
	fail map[string]bool
}

func (r *recordingAssessor) Assess(_ context.Context, req risk.Request) (risk.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.fail[req.Crop] {
		return risk.Assessment{}, errors.New("sources down")
	}
	return risk.Assessment{RiskLevel: risk.LevelHigh}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	levels map[string]risk.Level
	failed int
}

func (s *recordingSink) SetWatchLevel(target string, _ risk.Crop, level risk.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[target] = level
}

func (s *recordingSink) WatchFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

func TestWindowEndsYesterday(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC))
	s := New(nil, time.Hour, 7, &recordingAssessor{}, nil, clock, nil)

	p := s.Window()
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), p.End)
	assert.Equal(t, 7, p.Days())

	clock.Advance(24 * time.Hour)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), s.Window().End)
}

func TestRunOnceReportsLevels(t *testing.T) {
	targets := []config.WatchTarget{
		{Name: "dhaka", Location: risk.Location{Lat: 23.81, Lon: 90.41}, Crop: risk.CropRice},
		{Name: "punjab", Location: risk.Location{Lat: 30.9, Lon: 75.85}, Crop: risk.CropWheat},
	}
	assessor := &recordingAssessor{fail: map[string]bool{"wheat": true}}
	sink := &recordingSink{levels: map[string]risk.Level{}}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 6, 0, 0, 0, time.UTC))

	s := New(targets, time.Hour, 3, assessor, sink, clock, nil)
	s.RunOnce(context.Background())

	require.Len(t, assessor.reqs, 2)
	for _, req := range assessor.reqs {
		assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), req.Start)
		assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), req.End)
	}
	assert.Equal(t, map[string]risk.Level{"dhaka": risk.LevelHigh}, sink.levels)
	assert.Equal(t, 1, sink.failed)
}

func TestStartWithoutTargets(t *testing.T) {
	s := New(nil, time.Hour, 7, &recordingAssessor{}, nil, nil, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
