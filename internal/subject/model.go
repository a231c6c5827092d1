// Package subject manages the people whose attendance is tracked and their
// credentials.
package subject

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool { return r == RoleStudent || r == RoleAdmin }

// Shifts a subject can be assigned to.
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
)

// Registration defaults.
const (
	DefaultFeeStatus    = "No Dues"
	DefaultRecordStatus = "All Clear"
)

// Subject is a student or administrator profile.
type Subject struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	FullName      string    `json:"full_name"`
	AssignedShift string    `json:"assigned_shift"`
	FeeStatus     string    `json:"fee_status"`
	DueDate       string    `json:"due_date"`
	DueAmount     float64   `json:"due_amount"`
	PaidFees      float64   `json:"paid_fees"`
	FeeRemarks    string    `json:"fee_remarks"`
	RecordStatus  string    `json:"record_status"`
	PendingDocs   string    `json:"pending_docs"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStudent is the admin registration input. Empty optional fields take
// the registration defaults.
type NewStudent struct {
	FullName      string
	Username      string
	Password      string
	AssignedShift string
	FeeStatus     string
	RecordStatus  string
	DueDate       string
	DueAmount     float64
	PaidFees      float64
	FeeRemarks    string
	PendingDocs   string
}

// Changes is a partial update; nil fields are left untouched.
type Changes struct {
	FullName      *string
	AssignedShift *string
	FeeStatus     *string
	RecordStatus  *string
	DueDate       *string
	DueAmount     *float64
	PaidFees      *float64
	FeeRemarks    *string
	PendingDocs   *string
	Password      *string
}

func (c Changes) apply(s *Subject) {
	setString(&s.FullName, c.FullName)
	setString(&s.AssignedShift, c.AssignedShift)
	setString(&s.FeeStatus, c.FeeStatus)
	setString(&s.RecordStatus, c.RecordStatus)
	setString(&s.DueDate, c.DueDate)
	setString(&s.FeeRemarks, c.FeeRemarks)
	setString(&s.PendingDocs, c.PendingDocs)
	if c.DueAmount != nil {
		s.DueAmount = *c.DueAmount
	}
	if c.PaidFees != nil {
		s.PaidFees = *c.PaidFees
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func validShift(s string) bool { return s == ShiftMorning || s == ShiftAfternoon }
