package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"fleet-sync/internal/models"
	"fleet-sync/internal/repository"
)

var errWriteFailed = errors.New("write failed")

// rawDoc marshals a literal test document.
func rawDoc(doc bson.D) bson.Raw {
	data, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

func rawValue(v interface{}) bson.RawValue {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		panic(err)
	}
	return bson.RawValue{Type: t, Value: data}
}

// mobile is a MobileNo list holding one default number.
func mobile(no string) bson.RawValue {
	return rawValue(bson.A{bson.D{
		{Key: "MobileNo", Value: no},
		{Key: "IsDefaultNumber", Value: true},
		{Key: "LastUsed", Value: true},
	}})
}

// decodedDriver reads a driver the way the repository does.
func decodedDriver(doc bson.D) *models.Driver {
	var d models.Driver
	if err := bson.Unmarshal(rawDoc(doc), &d); err != nil {
		panic(err)
	}
	return &d
}

// ownershipVehicle is a local vehicle whose document carries an Ownership field.
func ownershipVehicle(id interface{}, no, ownership string) *models.Vehicle {
	return &models.Vehicle{
		ID:        id,
		VehicleNo: no,
		Doc: rawDoc(bson.D{
			{Key: "_id", Value: id},
			{Key: "VehicleNo", Value: no},
			{Key: "Ownership", Value: ownership},
			{Key: "Make", Value: "Tata"},
		}),
	}
}

type fakeDriverStore struct {
	mu        sync.Mutex
	drivers   []*models.Driver
	findErr   error
	insertErr error
	updateErr error

	insertCalls int
	updateCalls int
}

func (s *fakeDriverStore) FindAll(ctx context.Context) ([]*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := make([]*models.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, cloneDriver(d))
	}
	return out, nil
}

func (s *fakeDriverStore) FindByNameMarker(ctx context.Context, marker string) ([]*models.Driver, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Driver
	for _, d := range all {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(marker)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeDriverStore) InsertMany(ctx context.Context, drivers []*models.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, d := range drivers {
		s.drivers = append(s.drivers, cloneDriver(d))
	}
	return nil
}

func (s *fakeDriverStore) UpdateMobileNumbers(ctx context.Context, updates []repository.MobileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, u := range updates {
		for _, d := range s.drivers {
			if documentKey(d.ID) == documentKey(u.DriverID) {
				d.MobileNo = u.MobileNo
			}
		}
	}
	return nil
}

func (s *fakeDriverStore) byID(id interface{}) *models.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drivers {
		if documentKey(d.ID) == documentKey(id) {
			return cloneDriver(d)
		}
	}
	return nil
}

func cloneDriver(d *models.Driver) *models.Driver {
	c := *d
	return &c
}

type fakeVehicleStore struct {
	mu        sync.Mutex
	vehicles  []*models.Vehicle
	findErr   error
	insertErr error
	failOn    map[string]error

	insertCalls int
	writes      []string
}

func (s *fakeVehicleStore) FindAll(ctx context.Context) ([]*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, cloneVehicle(v))
	}
	return out, nil
}

func (s *fakeVehicleStore) FindOwned(ctx context.Context, field, value string) ([]*models.Vehicle, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Vehicle
	for _, v := range all {
		if owned, ok := v.Doc.Lookup(field).StringValueOK(); ok && strings.EqualFold(owned, value) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeVehicleStore) InsertMany(ctx context.Context, vehicles []*models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, v := range vehicles {
		s.vehicles = append(s.vehicles, cloneVehicle(v))
	}
	return nil
}

func (s *fakeVehicleStore) CloseTrip(ctx context.Context, vehicle *models.Vehicle) error {
	return s.write(vehicle, func(v *models.Vehicle) {
		if v.TripDetails == nil {
			v.TripDetails = &models.TripDetails{}
		}
		v.TripDetails.Open = false
	})
}

func (s *fakeVehicleStore) SetTripDetails(ctx context.Context, vehicle *models.Vehicle, details *models.TripDetails) error {
	return s.write(vehicle, func(v *models.Vehicle) {
		v.TripDetails = cloneTripDetails(details)
	})
}

func (s *fakeVehicleStore) write(vehicle *models.Vehicle, apply func(v *models.Vehicle)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, vehicle.VehicleNo)
	if err := s.failOn[vehicle.VehicleNo]; err != nil {
		return err
	}
	for _, v := range s.vehicles {
		if documentKey(v.ID) == documentKey(vehicle.ID) {
			apply(v)
			return nil
		}
	}
	return repository.ErrVehicleNotFound
}

func (s *fakeVehicleStore) byNo(vehicleNo string) *models.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.VehicleNo == vehicleNo {
			return cloneVehicle(v)
		}
	}
	return nil
}

func (s *fakeVehicleStore) resetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}

func cloneVehicle(v *models.Vehicle) *models.Vehicle {
	c := *v
	c.TripDetails = cloneTripDetails(v.TripDetails)
	return &c
}

func cloneTripDetails(td *models.TripDetails) *models.TripDetails {
	if td == nil {
		return nil
	}
	c := *td
	if td.Driver != nil {
		d := *td.Driver
		c.Driver = &d
	}
	return &c
}

// fakeTripStore returns every trip it holds, so the pass's own filtering is
// what decides which ones qualify.
type fakeTripStore struct {
	trips   []*models.Trip
	findErr error
}

func (s *fakeTripStore) FindQualifying(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.trips, nil
}

type fakeSession struct {
	stores   Stores
	closeErr error
	closed   int
}

func (s *fakeSession) Stores() Stores { return s.stores }

func (s *fakeSession) Close(ctx context.Context) error {
	s.closed++
	return s.closeErr
}
