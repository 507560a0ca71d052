package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RecordID is a world service key. The world service issues integer keys,
// but the client treats them as opaque strings and accepts either JSON form.
type RecordID string

// UnmarshalJSON accepts a JSON number or string.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id %s: want number or string", data)
	}
	*id = RecordID(n.String())
	return nil
}

// MarshalJSON writes integer keys as numbers and anything else as a string.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id RecordID) String() string { return string(id) }
