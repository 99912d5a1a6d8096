// Package geocode resolves free-form place names to coordinates.
package geocode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
)

// ErrNotConfigured is returned when no geocoding API key is set.
var ErrNotConfigured = errors.New("geocode: api key not configured")

// Resolver turns a place name into a coordinate.
type Resolver interface {
	Resolve(place string) (awhere.Location, error)
}

// GoogleResolver resolves places through the Google geocoding API.
type GoogleResolver struct {
	configured bool
}

// NewGoogleResolver sets the API key for the underlying geocoder. An empty
// key yields a resolver that fails with ErrNotConfigured.
func NewGoogleResolver(apiKey string) *GoogleResolver {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return &GoogleResolver{configured: apiKey != ""}
}

// Resolve accepts "city" or "city,country" and returns its coordinate.
func (r *GoogleResolver) Resolve(place string) (awhere.Location, error) {
	if !r.configured {
		return awhere.Location{}, ErrNotConfigured
	}

	address := geocoder.Address{}
	parts := strings.SplitN(place, ",", 2)
	address.City = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		address.Country = strings.TrimSpace(parts[1])
	}
	if address.City == "" {
		return awhere.Location{}, errors.New("geocode: empty place")
	}

	location, err := geocoder.Geocoding(address)
	if err != nil {
		return awhere.Location{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	return awhere.Location{Latitude: location.Latitude, Longitude: location.Longitude}, nil
}
