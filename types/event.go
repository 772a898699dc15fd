package types

import (
	"encoding/json"
	"time"
)

// Row change kinds carried by the live feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// Table names published on the live feed.
const (
	TableMessages = "messages"
	TableOffers   = "offers"
)

// RowEvent notifies subscribers that a row was written.
// Record holds the row encoded as JSON, in the same shape the REST API
// returns it.
type RowEvent struct {
	Table           string          `json:"table"`
	Type            string          `json:"type"`
	Record          json.RawMessage `json:"record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewRowEvent encodes record into a RowEvent.
func NewRowEvent(table, kind string, record any) (RowEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return RowEvent{}, err
	}
	return RowEvent{
		Table:           table,
		Type:            kind,
		Record:          data,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}

// DecodeMessage decodes the record as a Message.
func (e RowEvent) DecodeMessage() (Message, error) {
	var msg Message
	err := json.Unmarshal(e.Record, &msg)
	return msg, err
}

// DecodeOffer decodes the record as an Offer.
func (e RowEvent) DecodeOffer() (Offer, error) {
	var offer Offer
	err := json.Unmarshal(e.Record, &offer)
	return offer, err
}
