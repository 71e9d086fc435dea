package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/imroc/req"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/types"
)

// GeocodeService resolves free-form location strings against a
// Nominatim-compatible endpoint. The base URL comes from the
// environment so tests can point it at a local mock.
type GeocodeService struct {
	BaseUrl string
}

func NewGeocodeService() *GeocodeService {
	return &GeocodeService{BaseUrl: helpers.GetGeocodeBaseUrl()}
}

type geocodeHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (s *GeocodeService) Geocode(ctx context.Context, location string) (types.GeocodeResult, error) {
	if s.BaseUrl == "" {
		return types.GeocodeResult{}, fmt.Errorf("GEOCODE_API_URL_BASE environment variable is required")
	}

	searchUrl := s.BaseUrl + "/search?format=json&limit=1&q=" + url.QueryEscape(location)
	resp, err := req.Get(searchUrl, req.Header{"Accept": "application/json"})
	if err != nil {
		return types.GeocodeResult{}, fmt.Errorf("geocode request failed: %w", err)
	}

	var hits []geocodeHit
	if err := resp.ToJSON(&hits); err != nil {
		return types.GeocodeResult{}, fmt.Errorf("geocode response malformed: %w", err)
	}
	if len(hits) == 0 {
		return types.GeocodeResult{}, fmt.Errorf("location is not valid")
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return types.GeocodeResult{}, fmt.Errorf("geocode returned bad latitude %q: %w", hits[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return types.GeocodeResult{}, fmt.Errorf("geocode returned bad longitude %q: %w", hits[0].Lon, err)
	}

	address := hits[0].DisplayName
	if address == "" {
		address = "No address found"
	}

	return types.GeocodeResult{
		Latitude:  lat,
		Longitude: lon,
		Address:   address,
		Timezone:  TimezoneFor(lat, lon),
	}, nil
}
