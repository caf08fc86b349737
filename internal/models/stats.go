package models

import "time"

// AllocationStats summarises the state of the allocation for the admin dashboard.
type AllocationStats struct {
	TotalRooms          int              `json:"totalRooms"`
	TotalCapacity       int              `json:"totalCapacity"`
	TotalOccupied       int              `json:"totalOccupied"`
	ProfilesByStatus    map[string]int   `json:"profilesByStatus"`
	PendingSwaps        int              `json:"pendingSwaps"`
	PendingApplications int              `json:"pendingApplications"`
	ByBedType           []OccupancyStats `json:"byBedType"`
	GeneratedAt         time.Time        `json:"generatedAt"`
}

// BatchAssignEntry is the outcome for one student of a batch run.
type BatchAssignEntry struct {
	StudentID      string  `json:"studentId"`
	AssignedRoomID *string `json:"assignedRoomId"`
	Error          string  `json:"error,omitempty"`
}

// BatchAssignResult reports the outcome of assigning every pending profile.
type BatchAssignResult struct {
	Processed  int                `json:"processed"`
	Assigned   int                `json:"assigned"`
	Unassigned int                `json:"unassigned"`
	Results    []BatchAssignEntry `json:"results"`
}
