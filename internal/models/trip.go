package models

import (
	"time"
)

// Trip is a trip record from the local operational database. Only the
// fields the sync job reads are mapped.
type Trip struct {
	ID              interface{}     `bson:"_id,omitempty" json:"id"`
	VehicleNo       string          `bson:"VehicleNo" json:"vehicleNo"`
	StartDriver     string          `bson:"StartDriver" json:"startDriver"`
	StartDate       time.Time       `bson:"StartDate" json:"startDate"`
	EndDate         *time.Time      `bson:"EndDate,omitempty" json:"endDate,omitempty"`
	TallyLoadDetail TallyLoadDetail `bson:"TallyLoadDetail" json:"tallyLoadDetail"`
}

type TallyLoadDetail struct {
	Goods         string     `bson:"Goods" json:"goods"`
	UnloadingDate *time.Time `bson:"UnloadingDate,omitempty" json:"unloadingDate,omitempty"`
}

// TripFilter describes which trips count as open for the tripDetails
// projection.
type TripFilter struct {
	Since         time.Time
	ExcludedGoods string
}

// NewTripFilter returns the filter for a trailing window ending at now.
func NewTripFilter(now time.Time, window time.Duration, excludedGoods string) TripFilter {
	return TripFilter{
		Since:         now.Add(-window),
		ExcludedGoods: excludedGoods,
	}
}

// Qualifies reports whether the trip is still open: not unloaded, not ended,
// started inside the window and not carrying excluded goods.
func (f TripFilter) Qualifies(t *Trip) bool {
	if t.TallyLoadDetail.UnloadingDate != nil {
		return false
	}
	if t.EndDate != nil {
		return false
	}
	if t.StartDate.Before(f.Since) {
		return false
	}
	if f.ExcludedGoods != "" && t.TallyLoadDetail.Goods == f.ExcludedGoods {
		return false
	}
	return true
}
