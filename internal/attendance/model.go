package attendance

import "time"

// DateLayout is the calendar-date key of a daily record.
const DateLayout = "2006-01-02"

// Type is the requested transition.
type Type string

const (
	CheckIn  Type = "checkin"
	CheckOut Type = "checkout"
)

func (t Type) Valid() bool { return t == CheckIn || t == CheckOut }

// Action is the confirmation text for a performed transition.
func (t Type) Action() string {
	if t == CheckIn {
		return "Checked In"
	}
	return "Checked Out"
}

// Record is the daily attendance document of one subject. Empty photo
// strings mean no evidence was attached.
type Record struct {
	ID               string     `json:"id"`
	SubjectID        string     `json:"subject_id"`
	Date             string     `json:"date"`
	CheckInAt        *time.Time `json:"check_in_at,omitempty"`
	CheckInPhoto     string     `json:"check_in_photo,omitempty"`
	CheckOutAt       *time.Time `json:"check_out_at,omitempty"`
	CheckOutPhoto    string     `json:"check_out_photo,omitempty"`
	LocationVerified bool       `json:"location_verified"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MarkInput is a single mark-attendance request. Nil coordinates mean the
// caller sent no GPS fix.
type MarkInput struct {
	SubjectID         string
	Type              Type
	Latitude          *float64
	Longitude         *float64
	VerificationToken string
	Photo             string
}

// Result confirms a performed transition.
type Result struct {
	Action         string  `json:"action"`
	Date           string  `json:"date"`
	Record         Record  `json:"record"`
	Evidence       string  `json:"evidence"`
	DistanceMeters float64 `json:"distance_meters"`
}
