package models

import (
	"time"

	"gorm.io/gorm"
)

// Itinerary is the aggregate root of one driving plan. It owns exactly one
// start stop, one goal stop and zero-or-more ordered waypoint stops.
// Waypoint positions are always the contiguous sequence 1..N.
type Itinerary struct {
	gorm.Model

	UserID uint   `json:"user_id"`
	Title  string `json:"title" binding:"required"`
	Memo   string `json:"memo"`

	// DepartureDate is informational; the schedule anchor lives on the
	// start stop's departure_time.
	DepartureDate *time.Time `json:"departure_date"`

	// Geometry is the stop chain as a WKB LINESTRING, refreshed after every
	// successful edit and served as GeoJSON on reads.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Stops []Stop `gorm:"foreignKey:ItineraryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
}
