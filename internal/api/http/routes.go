package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
	"github.com/agrosphere/awhere-gridded-weather/internal/geocode"
	"github.com/agrosphere/awhere-gridded-weather/internal/grid"
	"github.com/agrosphere/awhere-gridded-weather/internal/store"
	"github.com/agrosphere/awhere-gridded-weather/internal/survey"
)

var validate = validator.New()

// Deps bundles everything the HTTP layer serves from.
type Deps struct {
	Service  *survey.Service
	Source   survey.Source
	Resolver geocode.Resolver
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	// The configured survey grid as cell polygons.
	v1.Get("/grid", func(c *fiber.Ctx) error {
		g := deps.Service.Grid()
		if g == nil {
			return fiber.NewError(fiber.StatusNotFound, "no survey grid configured")
		}
		return c.JSON(g.FeatureCollection())
	})

	// Build a grid for an arbitrary boundary without surveying it.
	v1.Post("/grids", func(c *fiber.Ctx) error {
		var req buildGridRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		boundary, err := grid.ParseBoundary(req.Boundary, grid.CRS(req.CRS))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		builder := grid.Builder{WorkingCRS: grid.CRS(req.CRS), CellSize: req.CellSize}
		g, _, err := builder.Build(boundary, req.Buffer)
		if err != nil {
			if errors.Is(err, grid.ErrInvalidGeometry) || errors.Is(err, grid.ErrInvalidParameter) ||
				errors.Is(err, grid.ErrUnsupportedCRS) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build grid")
		}

		return c.JSON(fiber.Map{
			"rows":  g.Rows,
			"cols":  g.Cols,
			"cells": len(g.Cells),
			"grid":  g.FeatureCollection(),
		})
	})

	// Latest snapshot of one grid cell.
	v1.Get("/cells/:id/latest", func(c *fiber.Ctx) error {
		snapshot, err := deps.Service.Latest(c.Params("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no survey data for requested cell")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch cell data")
		}
		return c.JSON(snapshot)
	})

	// Snapshot history of one grid cell.
	v1.Get("/cells/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cellID := c.Params("id")
		snapshots, err := deps.Service.History(cellID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no survey history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch cell history")
		}

		return c.JSON(fiber.Map{
			"cell_id":   cellID,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	// Latest snapshots of all surveyed cells as GeoJSON point features.
	v1.Get("/survey/latest", func(c *fiber.Ctx) error {
		return c.JSON(deps.Service.LatestFeatures())
	})

	// Trigger a survey run outside the schedule.
	v1.Post("/survey/run", func(c *fiber.Ctx) error {
		report, err := deps.Service.RunSurvey(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.JSON(report)
	})

	// Current observed weather for an arbitrary coordinate or place name.
	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c, deps.Resolver)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := deps.Source.Observe(c.Context(), loc)
		if err != nil {
			if errors.Is(err, survey.ErrNoObservation) {
				return fiber.NewError(fiber.StatusNotFound, "no observation for requested location")
			}
			if errors.Is(err, awhere.ErrUnauthorized) {
				return fiber.NewError(fiber.StatusBadGateway, "upstream rejected credentials")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(obs)
	})
}

// buildGridRequest is the body of POST /grids. Boundary carries raw GeoJSON.
type buildGridRequest struct {
	Boundary json.RawMessage `json:"boundary" validate:"required"`
	Buffer   float64         `json:"buffer" validate:"gte=0"`
	CellSize float64         `json:"cell_size" validate:"gte=0"`
	CRS      int             `json:"crs"`
}

// parseLocationQuery accepts either lat/lon or a place resolved through the
// geocoder.
func parseLocationQuery(c *fiber.Ctx, resolver geocode.Resolver) (awhere.Location, error) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr != "" || lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return awhere.Location{}, errors.New("invalid lat query parameter")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return awhere.Location{}, errors.New("invalid lon query parameter")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return awhere.Location{}, errors.New("coordinates out of range")
		}
		return awhere.Location{Latitude: lat, Longitude: lon}, nil
	}

	place := c.Query("place")
	if place == "" {
		return awhere.Location{}, errors.New("lat/lon or place query parameters are required")
	}
	if resolver == nil {
		return awhere.Location{}, errors.New("place lookup is not configured")
	}
	return resolver.Resolve(place)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
