package directions

import "context"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

// Request describes one leg computation between two adjacent stops.
// TollAllowed mirrors the origin stop's toll preference: false asks the
// provider to avoid toll roads.
type Request struct {
	Origin      LatLng
	Destination LatLng
	TollAllowed bool
}

// Leg is the result of one directions call. RouteShape is the provider's
// encoded polyline, kept opaque. MoveCost is nil when the provider returns
// no toll price for the leg.
type Leg struct {
	MoveTimeMin    int
	MoveDistanceKm float64
	MoveCost       *int
	RouteShape     string
}

// Provider is the contract for retrieving driving metrics between two
// points. Implementations must be safe for concurrent use.
type Provider interface {
	ComputeLeg(ctx context.Context, req Request) (Leg, error)
}
