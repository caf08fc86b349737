package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// BlockType is the coarse room tier.
type BlockType string

const (
	BlockNormal  BlockType = "normal"
	BlockPremium BlockType = "premium"
)

// Valid reports whether b is a known tier.
func (b BlockType) Valid() bool {
	return b == BlockNormal || b == BlockPremium
}

// HostelRef identifies a hostel either by number or by name, never both.
// The zero value is an empty reference.
type HostelRef struct {
	number int
	name   string
}

// HostelByNumber builds a numeric reference.
func HostelByNumber(n int) HostelRef { return HostelRef{number: n} }

// HostelByName builds a named reference.
func HostelByName(name string) HostelRef { return HostelRef{name: name} }

// IsNumber reports whether the reference is numeric.
func (h HostelRef) IsNumber() bool { return h.number != 0 }

// IsZero reports whether the reference carries nothing.
func (h HostelRef) IsZero() bool { return h.number == 0 && h.name == "" }

// Number returns the hostel number, or 0 for named references.
func (h HostelRef) Number() int { return h.number }

// Name returns the hostel name, or "" for numeric references.
func (h HostelRef) Name() string { return h.name }

func (h HostelRef) String() string {
	if h.IsNumber() {
		return strconv.Itoa(h.number)
	}
	return h.name
}

// MarshalJSON encodes numbers as JSON numbers and names as JSON strings.
func (h HostelRef) MarshalJSON() ([]byte, error) {
	if h.IsNumber() {
		return []byte(strconv.Itoa(h.number)), nil
	}
	if h.name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(h.name)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (h *HostelRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = HostelRef{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		if name == "" {
			return errors.New("hostel name must not be empty")
		}
		*h = HostelByName(name)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hostel must be a number or a name: %w", err)
	}
	if n == 0 {
		return errors.New("hostel number must not be zero")
	}
	*h = HostelByNumber(n)
	return nil
}

// Value stores the reference as a JSON scalar.
func (h HostelRef) Value() (driver.Value, error) {
	if h.IsZero() {
		return nil, nil
	}
	b, err := h.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON scalar column.
func (h *HostelRef) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	return h.UnmarshalJSON(raw)
}

// HostelRefs is an ordered preference list persisted as a JSON array.
type HostelRefs []HostelRef

// Split separates numeric and named references, preserving order.
func (hs HostelRefs) Split() (numbers []int, names []string) {
	for _, h := range hs {
		switch {
		case h.IsNumber():
			numbers = append(numbers, h.number)
		case h.name != "":
			names = append(names, h.name)
		}
	}
	return numbers, names
}

// FirstNumber returns the first numeric entry, if any.
func (hs HostelRefs) FirstNumber() (int, bool) {
	for _, h := range hs {
		if h.IsNumber() {
			return h.number, true
		}
	}
	return 0, false
}

// Value stores the list as a JSON array.
func (hs HostelRefs) Value() (driver.Value, error) {
	if hs == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]HostelRef(hs))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON array column.
func (hs *HostelRefs) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*hs = nil
		return nil
	}
	var list []HostelRef
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("scan hostel refs: %w", err)
	}
	*hs = list
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
