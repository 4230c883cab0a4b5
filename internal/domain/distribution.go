package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// NamedCount is one bucket of a dashboard distribution.
type NamedCount struct {
	Name  string
	Count int64
}

// Distribution is an ordered set of counts encoded as a JSON object.
type Distribution []NamedCount

// MarshalJSON writes the buckets as an object in slice order.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(c.Count, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the count for name.
func (d Distribution) Get(name string) (int64, bool) {
	for _, c := range d {
		if c.Name == name {
			return c.Count, true
		}
	}
	return 0, false
}
