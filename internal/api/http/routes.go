package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

const exampleQuery = "/api/v1/risk-alerts?lat=23.7644&lon=90.3897&crop=rice&start=20240925&end=20241001"

// RiskService is what the handlers need from risk.Service.
type RiskService interface {
	Assess(ctx context.Context, req risk.Request) (risk.Assessment, error)
	Features(ctx context.Context, w risk.Window) ([]risk.FeatureVector, risk.Availability, error)
	Registry() *risk.Registry
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. metrics may be nil.
func RegisterRoutes(app *fiber.App, service RiskService, metrics http.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agri-risk-engine",
		})
	})
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/risk-alerts", func(c *fiber.Ctx) error {
		q, err := parseQuery(c, true)
		if err != nil {
			return errorResponse(c, err)
		}

		req := risk.Request{
			Latitude:  q.lat,
			Longitude: q.lon,
			Crop:      q.crop,
			Start:     q.start,
			End:       q.end,
		}
		out, err := service.Assess(c.UserContext(), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(out)
	})

	v1.Get("/crops", func(c *fiber.Ctx) error {
		profiles := service.Registry().Profiles()
		return c.JSON(fiber.Map{
			"success": true,
			"crops":   profiles,
		})
	})

	v1.Get("/features", func(c *fiber.Ctx) error {
		q, err := parseQuery(c, false)
		if err != nil {
			return errorResponse(c, err)
		}

		w := risk.Window{Latitude: q.lat, Longitude: q.lon, Start: q.start, End: q.end}
		fvs, avail, err := service.Features(c.UserContext(), w)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success":      true,
			"location":     w.Location(),
			"period":       risk.PeriodView{Start: risk.DateKey(w.Start), End: risk.DateKey(w.End)},
			"data_sources": avail,
			"features":     fvs,
		})
	})
}

// riskQuery holds the parsed query parameters shared by the endpoints.
type riskQuery struct {
	lat, lon   float64
	crop       string
	start, end time.Time
}

// queryError is a malformed or incomplete query string.
type queryError struct {
	field   string
	message string
	missing []string
}

func (e *queryError) Error() string {
	return e.message
}

// parseQuery reads lat, lon, start, end and, when withCrop is set, crop.
func parseQuery(c *fiber.Ctx, withCrop bool) (riskQuery, error) {
	var q riskQuery

	var missing []string
	for _, n := range []string{"lat", "lon", "crop", "start", "end"} {
		if n == "crop" && !withCrop {
			continue
		}
		if strings.TrimSpace(c.Query(n)) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return q, &queryError{
			message: "Missing required parameters: " + strings.Join(missing, ", "),
			missing: missing,
		}
	}

	var err error
	if q.lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		return q, &queryError{field: "lat", message: "latitude must be numeric"}
	}
	if q.lon, err = strconv.ParseFloat(c.Query("lon"), 64); err != nil {
		return q, &queryError{field: "lon", message: "longitude must be numeric"}
	}
	if q.start, err = risk.ParseDate(c.Query("start")); err != nil {
		return q, &queryError{field: "start", message: err.Error()}
	}
	if q.end, err = risk.ParseDate(c.Query("end")); err != nil {
		return q, &queryError{field: "end", message: err.Error()}
	}
	q.crop = strings.ToLower(strings.TrimSpace(c.Query("crop")))
	return q, nil
}

func badRequest(c *fiber.Ctx, field, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"field":   field,
		"error":   message,
	})
}

func errorResponse(c *fiber.Ctx, err error) error {
	var qe *queryError
	if errors.As(err, &qe) {
		if len(qe.missing) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   qe.message,
				"missing": qe.missing,
				"example": exampleQuery,
			})
		}
		return badRequest(c, qe.field, qe.message)
	}

	var ve *risk.ValidationError
	if errors.As(err, &ve) {
		return badRequest(c, ve.Field, ve.Message)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Unable to complete risk analysis at this time. Please try again later.",
	})
}
