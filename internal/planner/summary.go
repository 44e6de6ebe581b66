package planner

import (
	"math"
	"time"
)

// WaypointSummary is the per-waypoint slice of the edit response.
type WaypointSummary struct {
	ID            uint    `json:"id"`
	ArrivalTime   *string `json:"arrivalTime"`
	DepartureTime *string `json:"departureTime"`
	MoveTime      int     `json:"moveTime"`
	MoveDistance  float64 `json:"moveDistance"`
}

// TripTotals aggregates the current leg chain. The "excluding goal"
// variants omit the final leg into the goal stop.
type TripTotals struct {
	DistanceExcludingGoal float64 `json:"distanceExcludingGoal"`
	TimeExcludingGoal     int     `json:"timeExcludingGoal"`
	DistanceIncludingGoal float64 `json:"distanceIncludingGoal"`
	TimeIncludingGoal     int     `json:"timeIncludingGoal"`
}

// Summary is the orchestrator's response payload for API consumers.
type Summary struct {
	Waypoints []WaypointSummary `json:"waypoints"`
	Totals    TripTotals        `json:"totals"`
}

// BuildSummary renders the chain into the response summary: HH:MM clock
// strings (null when unscheduled) and distances rounded to one decimal.
func BuildSummary(c Chain) Summary {
	waypoints := make([]WaypointSummary, 0, len(c)-2)
	for _, wp := range c[1 : len(c)-1] {
		waypoints = append(waypoints, WaypointSummary{
			ID:            wp.ID,
			ArrivalTime:   clockString(wp.ArrivalTime),
			DepartureTime: clockString(wp.DepartureTime),
			MoveTime:      wp.MoveTimeMin,
			MoveDistance:  roundKm(wp.MoveDistanceKm),
		})
	}

	var totals TripTotals
	for i := 0; i < len(c)-1; i++ {
		totals.DistanceIncludingGoal += c[i].MoveDistanceKm
		totals.TimeIncludingGoal += c[i].MoveTimeMin
		if i < len(c)-2 {
			totals.DistanceExcludingGoal += c[i].MoveDistanceKm
			totals.TimeExcludingGoal += c[i].MoveTimeMin
		}
	}
	totals.DistanceIncludingGoal = roundKm(totals.DistanceIncludingGoal)
	totals.DistanceExcludingGoal = roundKm(totals.DistanceExcludingGoal)

	return Summary{Waypoints: waypoints, Totals: totals}
}

func clockString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("15:04")
	return &s
}

func roundKm(km float64) float64 {
	return math.Round(km*10) / 10
}
