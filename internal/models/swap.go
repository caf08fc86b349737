package models

import "time"

// SwapStatus tracks the lifecycle of a swap request.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusApproved  SwapStatus = "approved"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCancelled SwapStatus = "cancelled"
)

// SwapRequest asks to exchange rooms between two assigned students.
// Seater and AC are frozen from the initiator's room at request time.
type SwapRequest struct {
	ID        string     `db:"id" json:"id"`
	FromUser  string     `db:"from_user" json:"fromUser"`
	ToUser    string     `db:"to_user" json:"toUser"`
	Status    SwapStatus `db:"status" json:"status"`
	Reason    string     `db:"reason" json:"reason"`
	Seater    int        `db:"seater" json:"seater"`
	AC        bool       `db:"ac" json:"ac"`
	DecidedBy *string    `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// SwapFilter narrows swap listings.
type SwapFilter struct {
	Status *SwapStatus
	UserID string
	Limit  int
	Offset int
}
