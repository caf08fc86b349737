package dto

import "github.com/noah-isme/hostel-allocation-api/internal/models"

// SetPreferencesRequest is the student preference payload.
type SetPreferencesRequest struct {
	FoodPreference      models.FoodPreference `json:"foodPreference" validate:"required,oneof=vegetarian non_vegetarian jain"`
	PreferredSeater     int                   `json:"preferredSeater" validate:"required,oneof=1 2 3 4 6 8"`
	PreferredAC         *bool                 `json:"preferredAC" validate:"required"`
	PreferredHostels    models.HostelRefs     `json:"preferredHostels"`
	PreferredBlock      *models.BlockType     `json:"preferredBlock,omitempty" validate:"omitempty,oneof=normal premium"`
	WantLargeDining     bool                  `json:"wantLargeDining"`
	WantExtraFacilities bool                  `json:"wantExtraFacilities"`
}

// UpsertRoomRequest creates or updates a room keyed by hostel, seater, ac and label.
type UpsertRoomRequest struct {
	HostelNumber    *int              `json:"hostelNumber,omitempty" validate:"omitempty,min=1,max=8"`
	HostelName      *string           `json:"hostelName,omitempty"`
	BlockType       *models.BlockType `json:"blockType,omitempty" validate:"omitempty,oneof=normal premium"`
	Seater          int               `json:"seater" validate:"required,oneof=1 2 3 4 6 8"`
	AC              *bool             `json:"ac" validate:"required"`
	LargeDining     bool              `json:"largeDining"`
	ExtraFacilities bool              `json:"extraFacilities"`
	Capacity        *int              `json:"capacity,omitempty" validate:"omitempty,min=1"`
	RoomLabel       *string           `json:"roomLabel,omitempty"`
}

// AvailabilityQuery mirrors the public availability filters.
type AvailabilityQuery struct {
	HostelNumber *int              `form:"hostelNumber" validate:"omitempty,min=1,max=8"`
	HostelName   *string           `form:"hostelName"`
	BlockType    *models.BlockType `form:"blockType" validate:"omitempty,oneof=normal premium"`
	Seater       *int              `form:"seater" validate:"omitempty,oneof=1 2 3 4 6 8"`
	AC           *bool             `form:"ac"`
}

// RequestSwapRequest names the counterpart of a swap.
type RequestSwapRequest struct {
	ToUserID string `json:"toUserId" validate:"required"`
	Reason   string `json:"reason" validate:"max=1000"`
}

// ApplyChangeRequest is the change application payload.
type ApplyChangeRequest struct {
	Name               string            `json:"name" validate:"required"`
	RegistrationNumber string            `json:"registrationNumber" validate:"required"`
	Reason             string            `json:"reason" validate:"required,max=2000"`
	Type               models.ChangeType `json:"type" validate:"required,oneof=bed_type hostel"`
	DesiredSeater      *int              `json:"desiredSeater,omitempty" validate:"omitempty,oneof=1 2 3 4 6 8"`
	DesiredAC          *bool             `json:"desiredAC,omitempty"`
	DesiredHostel      *models.HostelRef `json:"desiredHostel,omitempty"`
}

// Decision values accepted by the admin decide endpoints.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// DecisionRequest captures the admin verdict and optional note.
type DecisionRequest struct {
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
	AdminNote string `json:"adminNote" validate:"max=1000"`
}

// SwapQuery filters swap listings.
type SwapQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected cancelled"`
	UserID string `form:"userId"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// ApplicationQuery filters change application listings.
type ApplicationQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
	UserID string `form:"userId"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// ExportQuery selects the roster format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportFile is a rendered roster ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
