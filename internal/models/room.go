package models

import "time"

// ValidSeaters enumerates the bed counts a room may be built with.
var ValidSeaters = []int{1, 2, 3, 4, 6, 8}

// IsValidSeater reports whether n is an allowed bed count.
func IsValidSeater(n int) bool {
	for _, s := range ValidSeaters {
		if s == n {
			return true
		}
	}
	return false
}

// Amenities flags the optional facilities of a room or the ones a student asks for.
type Amenities struct {
	LargeDining     bool `db:"large_dining" json:"largeDining"`
	ExtraFacilities bool `db:"extra_facilities" json:"extraFacilities"`
}

// Room is a physical room in the hostel catalog.
type Room struct {
	ID           string    `db:"id" json:"id"`
	HostelNumber *int      `db:"hostel_number" json:"hostelNumber,omitempty"`
	HostelName   *string   `db:"hostel_name" json:"hostelName,omitempty"`
	BlockType    BlockType `db:"block_type" json:"blockType"`
	Seater       int       `db:"seater" json:"seater"`
	AC           bool      `db:"ac" json:"ac"`
	Amenities    Amenities `db:"amenities" json:"amenities"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Occupied     int       `db:"occupied" json:"occupied"`
	Occupants    []string  `db:"-" json:"occupants"`
	RoomLabel    *string   `db:"room_label" json:"roomLabel,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// HasSpace reports whether another student fits.
func (r Room) HasSpace() bool { return r.Occupied < r.Capacity }

// Available returns the number of free beds, never negative.
func (r Room) Available() int {
	if free := r.Capacity - r.Occupied; free > 0 {
		return free
	}
	return 0
}

// Hostel returns the room's hostel as a reference, preferring the number.
func (r Room) Hostel() HostelRef {
	if r.HostelNumber != nil {
		return HostelByNumber(*r.HostelNumber)
	}
	if r.HostelName != nil {
		return HostelByName(*r.HostelName)
	}
	return HostelRef{}
}

// SameBedType reports whether two rooms share seater and AC.
func (r Room) SameBedType(other Room) bool {
	return r.Seater == other.Seater && r.AC == other.AC
}

// RoomFilter narrows candidate and availability queries.
type RoomFilter struct {
	Seater       *int
	AC           *bool
	BlockType    *BlockType
	HostelNumber *int
	HostelName   *string
}

// RoomAvailability is a read-only projection of a room's free capacity.
type RoomAvailability struct {
	ID           string    `db:"id" json:"id"`
	HostelNumber *int      `db:"hostel_number" json:"hostelNumber,omitempty"`
	HostelName   *string   `db:"hostel_name" json:"hostelName,omitempty"`
	BlockType    BlockType `db:"block_type" json:"blockType"`
	Seater       int       `db:"seater" json:"seater"`
	AC           bool      `db:"ac" json:"ac"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Occupied     int       `db:"occupied" json:"occupied"`
	Available    int       `db:"available" json:"available"`
	Amenities    Amenities `db:"amenities" json:"amenities"`
	RoomLabel    *string   `db:"room_label" json:"roomLabel,omitempty"`
}

// OccupancyStats aggregates occupancy for one bed type.
type OccupancyStats struct {
	Seater   int  `db:"seater" json:"seater"`
	AC       bool `db:"ac" json:"ac"`
	Rooms    int  `db:"rooms" json:"rooms"`
	Capacity int  `db:"capacity" json:"capacity"`
	Occupied int  `db:"occupied" json:"occupied"`
}

// CandidateFilter is the exact-match filter the matcher sends to storage.
// Amenity flags are only constraints when true; hostel lists are OR-ed when both are set.
type CandidateFilter struct {
	Seater          int
	AC              bool
	BlockType       *BlockType
	LargeDining     bool
	ExtraFacilities bool
	HostelNumbers   []int
	HostelNames     []string
}

// Matches evaluates the filter against a single room.
func (f CandidateFilter) Matches(r Room) bool {
	if r.Seater != f.Seater || r.AC != f.AC {
		return false
	}
	if f.BlockType != nil && r.BlockType != *f.BlockType {
		return false
	}
	if f.LargeDining && !r.Amenities.LargeDining {
		return false
	}
	if f.ExtraFacilities && !r.Amenities.ExtraFacilities {
		return false
	}
	if len(f.HostelNumbers) == 0 && len(f.HostelNames) == 0 {
		return true
	}
	if r.HostelNumber != nil && containsInt(f.HostelNumbers, *r.HostelNumber) {
		return true
	}
	if r.HostelName != nil && containsString(f.HostelNames, *r.HostelName) {
		return true
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
