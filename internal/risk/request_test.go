package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRequestValidate(t *testing.T) {
	reg := NewRegistry()
	valid := Request{Latitude: 23.7644, Longitude: 90.3897, Crop: "rice", Start: day("2024-07-01"), End: day("2024-07-07")}

	tests := []struct {
		name  string
		mut   func(r *Request)
		field string
	}{
		{name: "valid", mut: func(r *Request) {}},
		{name: "latitude too high", mut: func(r *Request) { r.Latitude = 90.5 }, field: "lat"},
		{name: "latitude too low", mut: func(r *Request) { r.Latitude = -91 }, field: "lat"},
		{name: "longitude out of range", mut: func(r *Request) { r.Longitude = 181 }, field: "lon"},
		{name: "missing crop", mut: func(r *Request) { r.Crop = "" }, field: "crop"},
		{name: "unknown crop", mut: func(r *Request) { r.Crop = "barley" }, field: "crop"},
		{name: "missing start", mut: func(r *Request) { r.Start = time.Time{} }, field: "start"},
		{name: "start after end", mut: func(r *Request) { r.Start = day("2024-07-08") }, field: "start"},
		{name: "exactly thirty days", mut: func(r *Request) { r.End = day("2024-07-31") }},
		{name: "thirty one days", mut: func(r *Request) { r.End = day("2024-08-01") }, field: "end"},
		{name: "single day", mut: func(r *Request) { r.End = r.Start }},
		{name: "boundary coordinates", mut: func(r *Request) { r.Latitude, r.Longitude = -90, 180 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mut(&r)
			err := r.Validate(reg)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWindowValidate(t *testing.T) {
	w := Window{Latitude: 10, Longitude: 10, Start: day("20240101"), End: day("20240105")}
	require.NoError(t, w.Validate())

	w.Latitude = 100
	var ve *ValidationError
	require.True(t, errors.As(w.Validate(), &ve))
	assert.Equal(t, "lat", ve.Field)
}

func TestParseDate(t *testing.T) {
	a, err := ParseDate("20240315")
	require.NoError(t, err)
	b, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestPeriod(t *testing.T) {
	p := NewPeriod(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), day("2024-01-06"))
	assert.Equal(t, 5, p.Days())
	assert.Len(t, p.Dates(), 5)
	assert.Equal(t, "Jan 02-Jan 06", p.Label())
	assert.True(t, p.Contains(time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(day("2024-01-07")))
}
