package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// CategoryScore is one category's rounded similarity.
type CategoryScore struct {
	Category string
	Score    float64
}

// SimilarityBreakdown keeps per-category scores in classifier declaration order.
// It encodes as a JSON object whose key order matches the slice order.
type SimilarityBreakdown []CategoryScore

// Get returns the score recorded for category.
func (b SimilarityBreakdown) Get(category string) (float64, bool) {
	for _, s := range b {
		if s.Category == category {
			return s.Score, true
		}
	}
	return 0, false
}

// Categories returns the category names in order.
func (b SimilarityBreakdown) Categories() []string {
	names := make([]string, len(b))
	for i, s := range b {
		names[i] = s.Category
	}
	return names
}

// MarshalJSON writes an ordered JSON object.
func (b SimilarityBreakdown) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Category)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (b *SimilarityBreakdown) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("similarity breakdown: expected object, got %v", tok)
	}

	result := SimilarityBreakdown{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("similarity breakdown: expected string key, got %v", tok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("similarity breakdown: score for %q: %w", key, err)
		}
		result = append(result, CategoryScore{Category: key, Score: score})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*b = result
	return nil
}

// Value implements the driver.Valuer interface for database serialization.
func (b SimilarityBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	data, err := b.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (b *SimilarityBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = SimilarityBreakdown{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan SimilarityBreakdown")
		}
		data = []byte(str)
	}
	return b.UnmarshalJSON(data)
}
