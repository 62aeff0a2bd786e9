package doctors

import (
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

var (
	ErrNotFound = errors.New("doctors: not found")
	ErrInvalid  = errors.New("doctors: invalid doctor")
)

// Doctor is a practitioner patients can book.
type Doctor struct {
	ID             string `json:"id" bson:"_id"`
	Name           string `json:"name" bson:"name"`
	Specialization string `json:"specialization" bson:"specialization"`
	Qualifications string `json:"qualifications,omitempty" bson:"qualifications,omitempty"`
	Bio            string `json:"bio,omitempty" bson:"bio,omitempty"`
	// ConsultationFee is in the currency's minor unit.
	ConsultationFee int64                       `json:"consultationFee" bson:"consultationFee"`
	PhotoURL        string                      `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	Active          bool                        `json:"active" bson:"active"`
	Availability    availability.WeeklyTemplate `json:"availability" bson:"availability"`
	CreatedAt       time.Time                   `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt" bson:"updatedAt"`
}

// Schedule projects the doctor onto what the slot resolver reads.
func (d *Doctor) Schedule() *availability.DoctorSchedule {
	return &availability.DoctorSchedule{DoctorID: d.ID, Weekly: d.Availability}
}

// CreateRequest is the admin payload for a new doctor.
type CreateRequest struct {
	Name            string                      `json:"name"`
	Specialization  string                      `json:"specialization"`
	Qualifications  string                      `json:"qualifications"`
	Bio             string                      `json:"bio"`
	ConsultationFee int64                       `json:"consultationFee"`
	Active          *bool                       `json:"active"`
	Availability    availability.WeeklyTemplate `json:"availability"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Name            *string `json:"name"`
	Specialization  *string `json:"specialization"`
	Qualifications  *string `json:"qualifications"`
	Bio             *string `json:"bio"`
	ConsultationFee *int64  `json:"consultationFee"`
	Active          *bool   `json:"active"`
}

// ListFilter narrows List.
type ListFilter struct {
	ActiveOnly     bool
	Specialization string
}

func (f ListFilter) matches(d *Doctor) bool {
	if f.ActiveOnly && !d.Active {
		return false
	}
	if f.Specialization != "" && !strings.EqualFold(f.Specialization, d.Specialization) {
		return false
	}
	return true
}

func validate(d *Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.Join(ErrInvalid, errors.New("name is required"))
	}
	if d.ConsultationFee < 0 {
		return errors.Join(ErrInvalid, errors.New("consultation fee cannot be negative"))
	}
	if err := availability.ValidateTemplate(d.Availability); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	return nil
}

func clone(d *Doctor) *Doctor {
	out := *d
	if d.Availability != nil {
		out.Availability = make(availability.WeeklyTemplate, len(d.Availability))
		for day, sched := range d.Availability {
			sched.Sessions = append([]availability.Session(nil), sched.Sessions...)
			sched.Breaks = append([]availability.Break(nil), sched.Breaks...)
			out.Availability[day] = sched
		}
	}
	return &out
}
