package reconcile

import (
	"time"
)

type DriverReport struct {
	LocalDrivers       int `json:"localDrivers"`
	CloudDrivers       int `json:"cloudDrivers"`
	InsertedToCloud    int `json:"insertedToCloud"`
	LocalMobileUpdated int `json:"localMobileUpdated"`
	CloudMobileUpdated int `json:"cloudMobileUpdated"`
}

type VehicleReport struct {
	LocalVehicles   int `json:"localVehicles"`
	CloudVehicles   int `json:"cloudVehicles"`
	InsertedToCloud int `json:"insertedToCloud"`
}

type TripReport struct {
	QualifyingTrips int `json:"qualifyingTrips"`
	Vehicles        int `json:"vehicles"`
	Opened          int `json:"opened"`
	Updated         int `json:"updated"`
	Closed          int `json:"closed"`
	Unchanged       int `json:"unchanged"`
	Failed          int `json:"failed"`
}

// Writes is the number of vehicle updates the pass issued or attempted.
func (r TripReport) Writes() int {
	return r.Opened + r.Updated + r.Closed + r.Failed
}

// Report summarises one run. Sections of passes that did not run are nil.
type Report struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	DryRun     bool           `json:"dryRun"`
	Drivers    *DriverReport  `json:"drivers,omitempty"`
	Vehicles   *VehicleReport `json:"vehicles,omitempty"`
	Trips      *TripReport    `json:"trips,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without a fatal error.
func (r *Report) Succeeded() bool {
	return r.Error == ""
}

func (r *Report) finish(at time.Time, err error) {
	r.FinishedAt = at
	if err != nil {
		r.Error = err.Error()
	}
}
