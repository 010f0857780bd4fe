package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"cstore-agent/internal/domain"
)

const (
	kmPerDegree = 111
	milesPerKm  = 0.6214
)

// distanceKm approximates the distance between two lon/lat points by
// treating degrees as planar.
func distanceKm(a, b domain.Position) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1]) * kmPerDegree
}

// locateStore finds the store nearest to the customer and returns its spoken
// address and distance in miles. With the demo override on, the computed
// result is logged and replaced by the configured address and distance.
func (s *Skill) locateStore(ctx context.Context) (string, float64, error) {
	customer, err := s.deps.Route.CustomerPosition(ctx)
	if err != nil {
		return "", 0, newError(ErrorUpstream, "route_error", err)
	}
	place, err := s.deps.Places.Nearest(ctx, s.settings.StoreName, customer)
	if err != nil {
		return "", 0, newError(ErrorUpstream, "place_search_error", err)
	}

	address := strings.TrimSpace(place.AddressNumber + " " + place.Street)
	if address == "" {
		return "", 0, newError(ErrorUpstream, "place_without_address", errors.New("usecase: place search returned no address"))
	}
	km := distanceKm(place.Position, customer)
	miles := km * milesPerKm

	slog.Info("closest store located",
		"store", s.settings.StoreName,
		"customer", customer,
		"storePosition", place.Position,
		"address", address,
		"km", math.Round(km),
		"miles", math.Round(miles),
	)

	if s.settings.DemoStoreOverride {
		return s.settings.DemoStoreAddress, s.settings.DemoStoreMiles, nil
	}
	return address, miles, nil
}
