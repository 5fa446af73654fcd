package risk

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxPeriodDays bounds end-start of a request.
const MaxPeriodDays = 30

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Request is the input of a risk assessment.
type Request struct {
	Latitude  float64   `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"lon" validate:"gte=-180,lte=180"`
	Crop      string    `json:"crop" validate:"required"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required"`
}

// Location returns the request coordinates.
func (r Request) Location() Location {
	return Location{Lat: r.Latitude, Lon: r.Longitude}
}

// Period returns the request's inclusive day range.
func (r Request) Period() Period {
	return NewPeriod(r.Start, r.End)
}

// Validate checks the request against the registry and returns a *ValidationError
// naming the offending field.
func (r Request) Validate(reg *Registry) error {
	if err := structError(validate.Struct(r)); err != nil {
		return err
	}

	if _, err := reg.Lookup(r.Crop); err != nil {
		return &ValidationError{
			Field:   "crop",
			Message: fmt.Sprintf("crop must be one of: %s", strings.Join(reg.Names(), ", ")),
		}
	}
	return checkPeriod(r.Period())
}

// Window is a location and period without a crop, used for feature inspection.
type Window struct {
	Latitude  float64   `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"lon" validate:"gte=-180,lte=180"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required"`
}

// Location returns the window coordinates.
func (w Window) Location() Location {
	return Location{Lat: w.Latitude, Lon: w.Longitude}
}

// Period returns the window's inclusive day range.
func (w Window) Period() Period {
	return NewPeriod(w.Start, w.End)
}

// Validate applies the same coordinate and period rules as Request.
func (w Window) Validate() error {
	if err := structError(validate.Struct(w)); err != nil {
		return err
	}
	return checkPeriod(w.Period())
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: describeFieldError(fe)}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}

func checkPeriod(p Period) error {
	if p.Start.After(p.End) {
		return &ValidationError{Field: "start", Message: "start date must be before or equal to end date"}
	}
	if p.Days()-1 > MaxPeriodDays {
		return &ValidationError{Field: "end", Message: fmt.Sprintf("analysis period cannot exceed %d days", MaxPeriodDays)}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Field() {
	case "lat":
		return fmt.Sprintf("latitude must be between -90 and 90, got %v", fe.Value())
	case "lon":
		return fmt.Sprintf("longitude must be between -180 and 180, got %v", fe.Value())
	}
	if fe.Tag() == "required" {
		return "is required"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// ParseDate accepts YYYYMMDD or YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q; use YYYYMMDD or YYYY-MM-DD", s)
}
