package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// routesAPIURL is the Google Routes API v2 endpoint.
	routesAPIURL = "https://routes.googleapis.com/directions/v2:computeRoutes"

	// googleTimeout is the maximum duration for a Google API call. There is
	// no retry on this path: a failed call aborts the whole edit, which is
	// rolled back and safe for the client to retry.
	googleTimeout = 10 * time.Second

	// httpMaxIdleConns is the maximum number of idle (keep-alive)
	// connections kept in the transport pool.
	httpMaxIdleConns = 10

	// httpIdleConnTimeout is how long an idle connection is kept in the
	// pool before being closed.
	httpIdleConnTimeout = 30 * time.Second
)

// GoogleProvider implements Provider using the Google Routes API v2.
type GoogleProvider struct {
	apiKey     string
	httpClient *http.Client
	// apiURL is the Routes API endpoint. Overrideable in tests.
	apiURL string
}

// NewGoogleProvider creates a Provider backed by the Google Routes API v2.
// apiKey must be a valid Google Cloud API key with the Routes API enabled.
func NewGoogleProvider(apiKey string) *GoogleProvider {
	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &GoogleProvider{
		apiKey: apiKey,
		apiURL: routesAPIURL,
		httpClient: &http.Client{
			Timeout:   googleTimeout,
			Transport: transport,
		},
	}
}

type routesAPILatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type routesAPILocation struct {
	LatLng routesAPILatLng `json:"latLng"`
}

type routesAPIWaypoint struct {
	Location routesAPILocation `json:"location"`
}

type routesAPIRouteModifiers struct {
	AvoidTolls    bool `json:"avoidTolls"`
	AvoidHighways bool `json:"avoidHighways"`
	AvoidFerries  bool `json:"avoidFerries"`
}

type routesAPIRequest struct {
	Origin                 routesAPIWaypoint       `json:"origin"`
	Destination            routesAPIWaypoint       `json:"destination"`
	TravelMode             string                  `json:"travelMode"`
	RoutingPreference      string                  `json:"routingPreference"`
	ComputeAlternateRoutes bool                    `json:"computeAlternativeRoutes"`
	RouteModifiers         routesAPIRouteModifiers `json:"routeModifiers"`
	Units                  string                  `json:"units"`
}

type routesAPIMoney struct {
	CurrencyCode string `json:"currencyCode"`
	Units        string `json:"units"`
}

type routesAPITollInfo struct {
	EstimatedPrice []routesAPIMoney `json:"estimatedPrice"`
}

type routesAPITravelAdvisory struct {
	TollInfo routesAPITollInfo `json:"tollInfo"`
}

type routesAPIPolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}

type routesAPIRoute struct {
	Duration       string                  `json:"duration"`
	DistanceMeters int                     `json:"distanceMeters"`
	Polyline       routesAPIPolyline       `json:"polyline"`
	TravelAdvisory routesAPITravelAdvisory `json:"travelAdvisory"`
}

type routesAPIResponse struct {
	Routes []routesAPIRoute `json:"routes"`
}

// ComputeLeg calls the Routes API and returns the primary route's metrics.
func (g *GoogleProvider) ComputeLeg(ctx context.Context, req Request) (Leg, error) {
	body := routesAPIRequest{
		Origin: routesAPIWaypoint{
			Location: routesAPILocation{
				LatLng: routesAPILatLng{
					Latitude:  req.Origin.Lat,
					Longitude: req.Origin.Lng,
				},
			},
		},
		Destination: routesAPIWaypoint{
			Location: routesAPILocation{
				LatLng: routesAPILatLng{
					Latitude:  req.Destination.Lat,
					Longitude: req.Destination.Lng,
				},
			},
		},
		TravelMode:             "DRIVE",
		RoutingPreference:      "TRAFFIC_UNAWARE",
		ComputeAlternateRoutes: false,
		RouteModifiers: routesAPIRouteModifiers{
			AvoidTolls:    !req.TollAllowed,
			AvoidHighways: false,
			AvoidFerries:  false,
		},
		Units: "METRIC",
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Leg{}, fmt.Errorf("directions: google: marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, googleTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Leg{}, fmt.Errorf("directions: google: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", g.apiKey)
	// Request only the fields we need to minimize response size and latency.
	httpReq.Header.Set("X-Goog-FieldMask",
		"routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline,routes.travelAdvisory.tollInfo")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Leg{}, fmt.Errorf("directions: google: http: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Leg{}, fmt.Errorf("directions: google: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return Leg{}, fmt.Errorf("directions: google: status %d: %s", httpResp.StatusCode, string(respBytes))
	}

	var apiResp routesAPIResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return Leg{}, fmt.Errorf("directions: google: unmarshal response: %w", err)
	}

	if len(apiResp.Routes) == 0 {
		return Leg{}, fmt.Errorf("directions: google: no routes returned")
	}

	route := apiResp.Routes[0]

	// Google returns duration strings like "123s".
	durationS, err := parseDurationSeconds(route.Duration)
	if err != nil {
		return Leg{}, fmt.Errorf("directions: google: parse duration %q: %w", route.Duration, err)
	}

	leg := Leg{
		MoveTimeMin:    int(math.Round(float64(durationS) / 60.0)),
		MoveDistanceKm: float64(route.DistanceMeters) / 1000.0,
		RouteShape:     route.Polyline.EncodedPolyline,
	}

	if cost, ok := tollCost(route.TravelAdvisory.TollInfo); ok {
		leg.MoveCost = &cost
	}

	logrus.WithFields(logrus.Fields{
		"move_time_min": leg.MoveTimeMin,
		"distance_km":   leg.MoveDistanceKm,
		"toll_allowed":  req.TollAllowed,
	}).Debug("directions: leg computed")

	return leg, nil
}

// parseDurationSeconds parses a Google duration string like "123s".
func parseDurationSeconds(s string) (int, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty duration")
	}
	if !strings.HasSuffix(s, "s") {
		return 0, fmt.Errorf("missing seconds suffix")
	}
	secs, err := strconv.Atoi(strings.TrimSuffix(s, "s"))
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration")
	}
	return secs, nil
}

// tollCost extracts the first estimated toll price as whole currency units.
func tollCost(info routesAPITollInfo) (int, bool) {
	if len(info.EstimatedPrice) == 0 {
		return 0, false
	}
	units, err := strconv.Atoi(info.EstimatedPrice[0].Units)
	if err != nil {
		return 0, false
	}
	return units, true
}
