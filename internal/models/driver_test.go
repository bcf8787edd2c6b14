package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func decodeDriver(t *testing.T, doc bson.D) (*Driver, []byte) {
	t.Helper()
	data, err := bson.Marshal(doc)
	require.NoError(t, err)

	var d Driver
	require.NoError(t, bson.Unmarshal(data, &d))
	return &d, data
}

func TestDriver_KeepsDocumentUnchanged(t *testing.T) {
	id := primitive.NewObjectID()
	numberID := primitive.NewObjectID()

	d, data := decodeDriver(t, bson.D{
		{Key: "_id", Value: id},
		{Key: "Name", Value: "Ramesh Kumar ITPL123"},
		{Key: "ITPLId", Value: ""},
		{Key: "MobileNo", Value: bson.A{
			bson.D{
				{Key: "_id", Value: numberID},
				{Key: "MobileNo", Value: "9876543210"},
				{Key: "IsDefaultNumber", Value: true},
				{Key: "LastUsed", Value: false},
				{Key: "AddedOn", Value: "2025-03-01"},
			},
		}},
		{Key: "LicenceNo", Value: "MH1220190001234"},
	})

	assert.Equal(t, id, d.ID)
	assert.Equal(t, "Ramesh Kumar ITPL123", d.Name)
	assert.Equal(t, bson.Raw(data), d.Doc)

	itpl, err := d.Doc.LookupErr("ITPLId")
	require.NoError(t, err)
	assert.Equal(t, "", itpl.StringValue())

	// the number list is written back with its subdocument fields intact
	update, err := bson.Marshal(bson.M{"$set": bson.M{"MobileNo": d.MobileNo}})
	require.NoError(t, err)
	written := bson.Raw(update)
	assert.Equal(t, numberID, written.Lookup("$set", "MobileNo", "0", "_id").ObjectID())
	assert.Equal(t, "2025-03-01", written.Lookup("$set", "MobileNo", "0", "AddedOn").StringValue())
}

func TestDriver_LenientDecode(t *testing.T) {
	d, _ := decodeDriver(t, bson.D{
		{Key: "_id", Value: int32(42)},
		{Key: "Name", Value: 7},
		{Key: "MobileNo", Value: "9876543210"},
	})
	assert.Equal(t, int32(42), d.ID)
	assert.Equal(t, "", d.Name)
	assert.True(t, d.HasMobileNumbers())
}

func TestDriver_MissingID(t *testing.T) {
	data, err := bson.Marshal(bson.D{{Key: "Name", Value: "Ramesh ITPL1"}})
	require.NoError(t, err)

	var d Driver
	assert.ErrorIs(t, bson.Unmarshal(data, &d), ErrMissingID)
}

func TestDriver_HasMobileNumbers(t *testing.T) {
	tests := []struct {
		name   string
		mobile interface{}
		omit   bool
		want   bool
	}{
		{name: "absent", omit: true, want: false},
		{name: "null", mobile: nil, want: false},
		{name: "empty list", mobile: bson.A{}, want: false},
		{name: "empty string", mobile: "", want: false},
		{name: "bare number", mobile: "9876543210", want: true},
		{name: "list", mobile: bson.A{bson.D{{Key: "MobileNo", Value: "9876543210"}}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "Name", Value: "Ramesh ITPL1"}}
			if !tt.omit {
				doc = append(doc, bson.E{Key: "MobileNo", Value: tt.mobile})
			}
			d, _ := decodeDriver(t, doc)
			assert.Equal(t, tt.want, d.HasMobileNumbers())
		})
	}
}
