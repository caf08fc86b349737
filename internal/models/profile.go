package models

import "time"

// FoodPreference captures a student's mess choice. It does not influence matching.
type FoodPreference string

const (
	FoodVegetarian    FoodPreference = "vegetarian"
	FoodNonVegetarian FoodPreference = "non_vegetarian"
	FoodJain          FoodPreference = "jain"
)

// ProfileStatus is the allocation lifecycle state of a student.
type ProfileStatus string

const (
	ProfileStatusPending     ProfileStatus = "pending"
	ProfileStatusAssigned    ProfileStatus = "assigned"
	ProfileStatusSwapPending ProfileStatus = "swap_pending"
)

// StudentProfile stores a student's room preferences and current assignment.
type StudentProfile struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"userId"`
	FoodPreference   FoodPreference `db:"food_preference" json:"foodPreference"`
	PreferredSeater  int            `db:"preferred_seater" json:"preferredSeater"`
	PreferredAC      bool           `db:"preferred_ac" json:"preferredAc"`
	PreferredHostels HostelRefs     `db:"preferred_hostels" json:"preferredHostels"`
	PreferredBlock   *BlockType     `db:"preferred_block" json:"preferredBlock,omitempty"`
	Amenities        Amenities      `db:"amenities" json:"amenities"`
	AssignedRoomID   *string        `db:"assigned_room_id" json:"assignedRoomId,omitempty"`
	Status           ProfileStatus  `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsAssigned reports whether the profile currently holds a room.
func (p StudentProfile) IsAssigned() bool {
	return p.AssignedRoomID != nil && *p.AssignedRoomID != ""
}

// Preferences extracts the matching criteria.
func (p StudentProfile) Preferences() RoomPreferences {
	return RoomPreferences{
		Seater:    p.PreferredSeater,
		AC:        p.PreferredAC,
		Block:     p.PreferredBlock,
		Hostels:   p.PreferredHostels,
		Amenities: p.Amenities,
	}
}

// RoomPreferences is what the matcher needs to pick a room.
type RoomPreferences struct {
	Seater    int
	AC        bool
	Block     *BlockType
	Hostels   HostelRefs
	Amenities Amenities
}

// ProfileDetail is a profile with its assigned room resolved.
type ProfileDetail struct {
	StudentProfile
	AssignedRoom *Room `json:"assignedRoom,omitempty"`
}
