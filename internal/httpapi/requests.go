package httpapi

import (
	"geoattend/internal/attendance"
	"geoattend/internal/subject"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// markRequest omits subject_id for self-service marks. Coordinates are
// pointers so that 0 stays a valid value.
type markRequest struct {
	SubjectID         string   `json:"subject_id"`
	Type              string   `json:"type" binding:"required"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	VerificationToken string   `json:"verification_token"`
	Photo             string   `json:"photo"`
}

func (r markRequest) input(subjectID string) attendance.MarkInput {
	return attendance.MarkInput{
		SubjectID:         subjectID,
		Type:              attendance.Type(r.Type),
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		VerificationToken: r.VerificationToken,
		Photo:             r.Photo,
	}
}

type createStudentRequest struct {
	FullName      string  `json:"full_name" binding:"required"`
	Username      string  `json:"username" binding:"required"`
	Password      string  `json:"password" binding:"required,min=6"`
	AssignedShift string  `json:"assigned_shift" binding:"omitempty,oneof=morning afternoon"`
	FeeStatus     string  `json:"fee_status"`
	RecordStatus  string  `json:"record_status"`
	DueDate       string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	DueAmount     float64 `json:"due_amount" binding:"gte=0"`
	PaidFees      float64 `json:"paid_fees" binding:"gte=0"`
	FeeRemarks    string  `json:"fee_remarks"`
	PendingDocs   string  `json:"pending_docs"`
}

func (r createStudentRequest) student() subject.NewStudent {
	return subject.NewStudent{
		FullName:      r.FullName,
		Username:      r.Username,
		Password:      r.Password,
		AssignedShift: r.AssignedShift,
		FeeStatus:     r.FeeStatus,
		RecordStatus:  r.RecordStatus,
		DueDate:       r.DueDate,
		DueAmount:     r.DueAmount,
		PaidFees:      r.PaidFees,
		FeeRemarks:    r.FeeRemarks,
		PendingDocs:   r.PendingDocs,
	}
}

type updateStudentRequest struct {
	FullName      *string  `json:"full_name"`
	AssignedShift *string  `json:"assigned_shift" binding:"omitempty,oneof=morning afternoon"`
	FeeStatus     *string  `json:"fee_status"`
	RecordStatus  *string  `json:"record_status"`
	DueDate       *string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	DueAmount     *float64 `json:"due_amount" binding:"omitempty,gte=0"`
	PaidFees      *float64 `json:"paid_fees" binding:"omitempty,gte=0"`
	FeeRemarks    *string  `json:"fee_remarks"`
	PendingDocs   *string  `json:"pending_docs"`
	Password      *string  `json:"password" binding:"omitempty,min=6"`
}

func (r updateStudentRequest) changes() subject.Changes {
	return subject.Changes{
		FullName:      r.FullName,
		AssignedShift: r.AssignedShift,
		FeeStatus:     r.FeeStatus,
		RecordStatus:  r.RecordStatus,
		DueDate:       r.DueDate,
		DueAmount:     r.DueAmount,
		PaidFees:      r.PaidFees,
		FeeRemarks:    r.FeeRemarks,
		PendingDocs:   r.PendingDocs,
		Password:      r.Password,
	}
}
