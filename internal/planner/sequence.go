package planner

import (
	"fmt"
	"sort"

	"tripline/internal/models"
)

// Chain is the full ordered stop list of one itinerary:
// start, waypoint 1..N, goal. All position arithmetic lives in this file;
// no other code assigns Stop.Position.
type Chain []models.Stop

// NewChain orders a flat stop list into a chain. The start stop comes
// first, waypoints follow sorted by position, the goal stop is last.
func NewChain(stops []models.Stop) (Chain, error) {
	var start, goal *models.Stop
	waypoints := make([]models.Stop, 0, len(stops))

	for i := range stops {
		switch stops[i].Kind {
		case models.StopKindStart:
			if start != nil {
				return nil, fmt.Errorf("chain: duplicate start stop")
			}
			start = &stops[i]
		case models.StopKindGoal:
			if goal != nil {
				return nil, fmt.Errorf("chain: duplicate goal stop")
			}
			goal = &stops[i]
		case models.StopKindWaypoint:
			waypoints = append(waypoints, stops[i])
		default:
			return nil, fmt.Errorf("chain: unknown stop kind %q", stops[i].Kind)
		}
	}

	if start == nil || goal == nil {
		return nil, fmt.Errorf("chain: itinerary must have a start and a goal stop")
	}

	sort.Slice(waypoints, func(i, j int) bool {
		return waypoints[i].Position < waypoints[j].Position
	})

	chain := make(Chain, 0, len(stops))
	chain = append(chain, *start)
	chain = append(chain, waypoints...)
	chain = append(chain, *goal)
	return chain, nil
}

// Start returns the start stop.
func (c Chain) Start() *models.Stop { return &c[0] }

// Goal returns the goal stop.
func (c Chain) Goal() *models.Stop { return &c[len(c)-1] }

// Waypoints returns the waypoint stops in order.
func (c Chain) Waypoints() []models.Stop {
	return append([]models.Stop(nil), c[1:len(c)-1]...)
}

// clone returns a shallow copy; time pointers are replaced, never written
// through, so the copy is safe to discard on failure.
func (c Chain) clone() Chain {
	return append(Chain(nil), c...)
}

// AppendWaypoint adds a waypoint at position N+1. The input chain is left
// untouched.
func AppendWaypoint(c Chain, wp models.Stop) Chain {
	wp.Kind = models.StopKindWaypoint
	wp.Position = len(c) - 1 // existing waypoints occupy 1..len-2

	out := make(Chain, 0, len(c)+1)
	out = append(out, c[:len(c)-1]...)
	out = append(out, wp)
	out = append(out, *c.Goal())
	return out
}

// BulkAppendWaypoints appends many waypoints in one pass with consecutive
// positions, for batch-adoption flows that recompute once afterwards.
func BulkAppendWaypoints(c Chain, wps []models.Stop) Chain {
	out := make(Chain, 0, len(c)+len(wps))
	out = append(out, c[:len(c)-1]...)
	next := len(c) - 1
	for _, wp := range wps {
		wp.Kind = models.StopKindWaypoint
		wp.Position = next
		next++
		out = append(out, wp)
	}
	out = append(out, *c.Goal())
	return out
}

// RemoveWaypointAt deletes the waypoint at the given position and shifts
// every later waypoint down by one, keeping positions contiguous. Returns
// ErrNotFound when the position does not exist.
func RemoveWaypointAt(c Chain, position int) (Chain, error) {
	if position < 1 || position > len(c)-2 {
		return nil, fmt.Errorf("remove waypoint at %d: %w", position, ErrNotFound)
	}

	out := make(Chain, 0, len(c)-1)
	out = append(out, *c.Start())
	for _, wp := range c[1 : len(c)-1] {
		if wp.Position == position {
			continue
		}
		if wp.Position > position {
			wp.Position--
		}
		out = append(out, wp)
	}
	out = append(out, *c.Goal())
	return out, nil
}

// ReorderWaypoints reassigns positions 1..N in the submitted ID order. The
// ID list must be an exact permutation of the current waypoint IDs: same
// set, no duplicates, no unknowns, no omissions. On any mismatch the input
// chain is returned unchanged alongside a ValidationError.
func ReorderWaypoints(c Chain, ids []uint) (Chain, error) {
	waypoints := c[1 : len(c)-1]

	if len(ids) != len(waypoints) {
		return nil, &ValidationError{
			Field:   "stop_ids",
			Message: fmt.Sprintf("expected %d waypoint ids, got %d", len(waypoints), len(ids)),
		}
	}

	byID := make(map[uint]models.Stop, len(waypoints))
	for _, wp := range waypoints {
		byID[wp.ID] = wp
	}

	seen := make(map[uint]struct{}, len(ids))
	out := make(Chain, 0, len(c))
	out = append(out, *c.Start())
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{
				Field:   "stop_ids",
				Message: fmt.Sprintf("duplicate stop id %d", id),
			}
		}
		seen[id] = struct{}{}

		wp, ok := byID[id]
		if !ok {
			return nil, &ValidationError{
				Field:   "stop_ids",
				Message: fmt.Sprintf("stop id %d is not a waypoint of this itinerary", id),
			}
		}
		wp.Position = i + 1
		out = append(out, wp)
	}
	out = append(out, *c.Goal())
	return out, nil
}
