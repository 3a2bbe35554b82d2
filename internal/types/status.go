package types

import (
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrMalformedStatus is returned when a status response cannot be decoded.
	ErrMalformedStatus = errors.New("malformed status response")
	// ErrEmptySnapshot is returned by Latest on an empty sequence.
	ErrEmptySnapshot = errors.New("status snapshot is empty")
)

// StatusEntry is one identifier and its human-readable state.
type StatusEntry struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// StatusRecord is one historical status sample. Status keeps the key order of
// the JSON object it was decoded from.
type StatusRecord struct {
	Time   string        `json:"time,omitempty"`
	Status []StatusEntry `json:"status"`
}

// StatusSnapshot is the ordered sequence returned by a status endpoint,
// oldest first.
type StatusSnapshot []StatusRecord

// Latest returns the last record of the sequence.
func (s StatusSnapshot) Latest() (StatusRecord, error) {
	if len(s) == 0 {
		return StatusRecord{}, ErrEmptySnapshot
	}
	return s[len(s)-1], nil
}

// DecodeStatusSnapshot decodes a JSON array of records, each holding a
// "status" object mapping identifier to state. Only the last record is
// rendered, so only the last record must have that shape; earlier records
// that do not are left out of the snapshot.
func DecodeStatusSnapshot(data []byte) (StatusSnapshot, error) {
	iter := jsoniter.ConfigDefault.BorrowIterator(data)
	defer jsoniter.ConfigDefault.ReturnIterator(iter)

	if next := iter.WhatIsNext(); next != jsoniter.ArrayValue {
		return nil, fmt.Errorf("%w: expected array", ErrMalformedStatus)
	}

	var raws [][]byte
	iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		raws = append(raws, it.SkipAndReturnBytes())
		return it.Error == nil
	})
	if iter.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatus, iter.Error)
	}

	snapshot := make(StatusSnapshot, 0, len(raws))
	for i, raw := range raws {
		rec, err := parseStatusRecord(raw)
		if err != nil {
			if i == len(raws)-1 {
				return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedStatus, i, err)
			}
			continue
		}
		snapshot = append(snapshot, rec)
	}
	return snapshot, nil
}

func parseStatusRecord(raw []byte) (StatusRecord, error) {
	it := jsoniter.ConfigDefault.BorrowIterator(raw)
	defer jsoniter.ConfigDefault.ReturnIterator(it)
	return readStatusRecord(it)
}

func readStatusRecord(it *jsoniter.Iterator) (StatusRecord, error) {
	if it.WhatIsNext() != jsoniter.ObjectValue {
		it.Skip()
		return StatusRecord{}, errors.New("record is not an object")
	}

	var rec StatusRecord
	seenStatus := false
	var fieldErr error
	it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		switch field {
		case "status":
			if it.WhatIsNext() != jsoniter.ObjectValue {
				it.Skip()
				fieldErr = errors.New("status is not an object")
				return false
			}
			seenStatus = true
			rec.Status = []StatusEntry{}
			it.ReadObjectCB(func(it *jsoniter.Iterator, id string) bool {
				rec.Status = append(rec.Status, StatusEntry{ID: id, State: readScalarText(it)})
				return it.Error == nil
			})
		case "time":
			rec.Time = readScalarText(it)
		default:
			it.Skip()
		}
		return it.Error == nil
	})
	if fieldErr != nil {
		return StatusRecord{}, fieldErr
	}
	if it.Error != nil {
		return StatusRecord{}, it.Error
	}
	if !seenStatus {
		return StatusRecord{}, errors.New("record has no status")
	}
	return rec, nil
}

func readScalarText(it *jsoniter.Iterator) string {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString()
	case jsoniter.NilValue:
		it.ReadNil()
		return ""
	case jsoniter.BoolValue:
		return strconv.FormatBool(it.ReadBool())
	case jsoniter.NumberValue:
		return formatNumber(string(it.ReadNumber()))
	default:
		return string(it.SkipAndReturnBytes())
	}
}
