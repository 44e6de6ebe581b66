package models

import (
	"time"

	"gorm.io/gorm"
)

// Stop kinds. A chain is always start → waypoint 1..N → goal.
const (
	StopKindStart    = "start"
	StopKindWaypoint = "waypoint"
	StopKindGoal     = "goal"
)

// Stop is one point of an itinerary. MoveTimeMin/MoveDistanceKm/MoveCost
// describe the outgoing leg to the next stop in sequence; the goal stop is
// terminal and never carries leg metrics. ArrivalTime and DepartureTime are
// derived — only the start stop's DepartureTime is set by hand, as the
// anchor for the whole schedule.
type Stop struct {
	gorm.Model

	ItineraryID uint   `json:"itinerary_id"`
	Kind        string `json:"kind"`

	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	// Position is 0 for start and goal; waypoints occupy 1..N.
	Position int `json:"position"`

	// Outgoing leg metrics, written by the route stage.
	MoveTimeMin    int     `json:"move_time_min"`
	MoveDistanceKm float64 `json:"move_distance_km"`
	MoveCost       *int    `json:"move_cost,omitempty"`
	RouteShape     string  `json:"route_shape,omitempty"`

	// TollUsed controls whether the outgoing leg may use toll roads.
	TollUsed bool `json:"toll_used"`

	// StayDurationMin is waypoint-only. nil means "no stay configured",
	// which schedules like 0 but displays differently.
	StayDurationMin *int `json:"stay_duration_min,omitempty"`

	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`

	Memo string `json:"memo"`

	// Genre is filled asynchronously by the classifier; never part of the
	// route/schedule transaction.
	Genre string `json:"genre,omitempty"`
}

// IsWaypoint reports whether the stop is a waypoint.
func (s *Stop) IsWaypoint() bool { return s.Kind == StopKindWaypoint }

// StayMinutes returns the stay duration treating "unset" as zero.
func (s *Stop) StayMinutes() int {
	if s.StayDurationMin == nil {
		return 0
	}
	return *s.StayDurationMin
}
