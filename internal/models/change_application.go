package models

import "time"

// ChangeType distinguishes what a change application asks for.
type ChangeType string

const (
	ChangeTypeBedType ChangeType = "bed_type"
	ChangeTypeHostel  ChangeType = "hostel"
)

// ApplicationStatus tracks the decision on a change application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// ChangeApplication is a request for a different bed type or hostel. Approval
// rewrites the applicant's preferences and re-runs matching.
type ChangeApplication struct {
	ID                 string            `db:"id" json:"id"`
	UserID             string            `db:"user_id" json:"userId"`
	Name               string            `db:"name" json:"name"`
	RegistrationNumber string            `db:"registration_number" json:"registrationNumber"`
	Reason             string            `db:"reason" json:"reason"`
	Type               ChangeType        `db:"type" json:"type"`
	DesiredSeater      *int              `db:"desired_seater" json:"desiredSeater,omitempty"`
	DesiredAC          *bool             `db:"desired_ac" json:"desiredAc,omitempty"`
	DesiredHostel      *HostelRef        `db:"desired_hostel" json:"desiredHostel,omitempty"`
	Status             ApplicationStatus `db:"status" json:"status"`
	AdminNote          *string           `db:"admin_note" json:"adminNote,omitempty"`
	DecidedBy          *string           `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt          *time.Time        `db:"decided_at" json:"decidedAt,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"createdAt"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status *ApplicationStatus
	UserID string
	Limit  int
	Offset int
}

// ApplicationOutcome reports a decision and, for approvals, where the student ended up.
type ApplicationOutcome struct {
	Application    ChangeApplication `json:"application"`
	Rematched      bool              `json:"rematched"`
	AssignedRoomID *string           `json:"assignedRoomId"`
	ProfileStatus  ProfileStatus     `json:"profileStatus,omitempty"`
}
