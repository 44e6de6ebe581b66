package planner

import (
	"time"
)

// PropagateSchedule computes arrival/departure clock times for every stop
// by walking the chain from the start stop's departure anchor. It is pure:
// the input chain is never mutated and re-running on unchanged input yields
// identical output. When the anchor is unset, every derived time is unset.
func PropagateSchedule(c Chain) Chain {
	out := c.clone()

	start := out.Start()
	start.ArrivalTime = nil

	if start.DepartureTime == nil {
		// No anchor, no schedule.
		for i := 1; i < len(out); i++ {
			out[i].ArrivalTime = nil
			out[i].DepartureTime = nil
		}
		return out
	}

	current := *start.DepartureTime
	for i := 0; i < len(out)-1; i++ {
		arrival := current.Add(time.Duration(out[i].MoveTimeMin) * time.Minute)
		next := &out[i+1]
		next.ArrivalTime = &arrival

		if next.IsWaypoint() {
			departure := arrival.Add(time.Duration(next.StayMinutes()) * time.Minute)
			next.DepartureTime = &departure
			current = departure
		} else {
			// Goal is terminal, no departure.
			next.DepartureTime = nil
			current = arrival
		}
	}
	return out
}
