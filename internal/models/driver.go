package models

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrMissingID is returned when a document has no _id.
var ErrMissingID = errors.New("document has no _id")

// Driver is a driver document as stored in both the local and the cloud
// database. Only _id, Name and MobileNo are interpreted; Doc holds the
// document exactly as read so a copy to the other side is inserted unchanged.
type Driver struct {
	ID       interface{}
	Name     string
	MobileNo bson.RawValue
	Doc      bson.Raw
}

// UnmarshalBSON keeps the raw document and reads the interpreted fields
// leniently. A non-string Name reads as empty; MobileNo is kept in whatever
// shape it was stored.
func (d *Driver) UnmarshalBSON(data []byte) error {
	doc := append(bson.Raw(nil), data...)

	id, err := documentID(doc)
	if err != nil {
		return err
	}

	*d = Driver{ID: id, Doc: doc}
	d.Name, _ = doc.Lookup("Name").StringValueOK()
	if v, err := doc.LookupErr("MobileNo"); err == nil {
		d.MobileNo = v
	}
	return nil
}

// HasMobileNumbers reports whether the driver record is enriched with at
// least one phone number. A bare string number counts; null, an empty list
// and an empty string do not.
func (d *Driver) HasMobileNumbers() bool {
	if arr, ok := d.MobileNo.ArrayOK(); ok {
		values, err := arr.Values()
		return err == nil && len(values) > 0
	}
	if s, ok := d.MobileNo.StringValueOK(); ok {
		return s != ""
	}
	return false
}

func documentID(doc bson.Raw) (interface{}, error) {
	raw, err := doc.LookupErr("_id")
	if err != nil {
		return nil, ErrMissingID
	}

	var id interface{}
	if err := raw.Unmarshal(&id); err != nil {
		return nil, fmt.Errorf("failed to read _id: %w", err)
	}
	return id, nil
}
