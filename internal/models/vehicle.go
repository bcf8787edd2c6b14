package models

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// Vehicle is a vehicle document. Doc holds the document exactly as read;
// the typed fields are the ones the sync compares and writes.
type Vehicle struct {
	ID          interface{}
	VehicleNo   string
	TripDetails *TripDetails
	Doc         bson.Raw
}

// TripDetails is the projection of the vehicle's current trip kept on the
// cloud vehicle record.
type TripDetails struct {
	ID     interface{} `bson:"id,omitempty" json:"id,omitempty"`
	Driver *TripDriver `bson:"driver,omitempty" json:"driver,omitempty"`
	Open   bool        `bson:"open" json:"open"`
}

type TripDriver struct {
	ID       string      `bson:"id,omitempty" json:"id,omitempty"`
	Name     string      `bson:"Name" json:"name"`
	MobileNo interface{} `bson:"MobileNo" json:"mobileNo"`
}

// IsOpen treats a missing projection as closed.
func (v *Vehicle) IsOpen() bool {
	return v.TripDetails != nil && v.TripDetails.Open
}

// UnmarshalBSON keeps the raw document and reads VehicleNo and tripDetails.
// The projection is read field by field so a numeric driver id or a missing
// flag does not reject the whole vehicle.
func (v *Vehicle) UnmarshalBSON(data []byte) error {
	doc := append(bson.Raw(nil), data...)

	id, err := documentID(doc)
	if err != nil {
		return err
	}
	*v = Vehicle{ID: id, Doc: doc}

	if no, err := doc.LookupErr("VehicleNo"); err == nil {
		s, ok := no.StringValueOK()
		if !ok {
			return fmt.Errorf("VehicleNo is %s, not a string", no.Type)
		}
		v.VehicleNo = s
	}

	if raw, err := doc.LookupErr("tripDetails"); err == nil {
		details, err := readTripDetails(raw)
		if err != nil {
			return err
		}
		v.TripDetails = details
	}
	return nil
}

func readTripDetails(raw bson.RawValue) (*TripDetails, error) {
	if raw.Type == bson.TypeNull {
		return nil, nil
	}
	doc, ok := raw.DocumentOK()
	if !ok {
		return nil, fmt.Errorf("tripDetails is %s, not a document", raw.Type)
	}

	details := &TripDetails{}
	if id, err := doc.LookupErr("id"); err == nil && id.Type != bson.TypeNull {
		if err := id.Unmarshal(&details.ID); err != nil {
			return nil, fmt.Errorf("failed to read tripDetails.id: %w", err)
		}
	}
	details.Open, _ = doc.Lookup("open").BooleanOK()

	if d, ok := doc.Lookup("driver").DocumentOK(); ok {
		driver := &TripDriver{
			ID:   looseString(d.Lookup("id")),
			Name: looseString(d.Lookup("Name")),
		}
		if mobile, err := d.LookupErr("MobileNo"); err == nil {
			if err := mobile.Unmarshal(&driver.MobileNo); err != nil {
				return nil, fmt.Errorf("failed to read tripDetails.driver.MobileNo: %w", err)
			}
		}
		details.Driver = driver
	}
	return details, nil
}

// looseString renders string and numeric values as text and everything
// else as empty.
func looseString(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if n, ok := v.Int32OK(); ok {
		return strconv.FormatInt(int64(n), 10)
	}
	if n, ok := v.Int64OK(); ok {
		return strconv.FormatInt(n, 10)
	}
	if f, ok := v.DoubleOK(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
