package holidays

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

var (
	ErrNotFound = errors.New("holidays: not found")
	ErrInvalid  = errors.New("holidays: invalid override")
)

// Request is the admin payload for creating or replacing an override.
type Request struct {
	Date           string                    `json:"date"`
	Name           string                    `json:"name"`
	Type           availability.OverrideType `json:"type"`
	AppliesTo      availability.Scope        `json:"appliesTo"`
	DoctorID       string                    `json:"doctorId,omitempty"`
	IsFullDay      bool                      `json:"isFullDay"`
	CustomSessions []availability.Session    `json:"customSessions,omitempty"`
	CustomBreaks   []availability.Break      `json:"customBreaks,omitempty"`
}

// ListFilter narrows a range listing. Dates are inclusive "YYYY-MM-DD".
type ListFilter struct {
	From     string
	To       string
	DoctorID string
}

func (f ListFilter) matches(o availability.HolidayOverride) bool {
	if f.From != "" && o.Date < f.From {
		return false
	}
	if f.To != "" && o.Date > f.To {
		return false
	}
	if f.DoctorID != "" && o.AppliesTo != availability.ScopeAll && o.DoctorID != f.DoctorID {
		return false
	}
	return true
}

// normalized trims identifiers so stored overrides match resolver lookups.
func (r Request) normalized() Request {
	r.Date = strings.TrimSpace(r.Date)
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	return r
}

func (r Request) validate() error {
	if _, err := availability.ParseDate(r.Date); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch r.Type {
	case availability.OverrideHoliday, availability.OverrideSpecialDay:
	default:
		return fmt.Errorf("%w: type must be holiday or special_day", ErrInvalid)
	}
	switch r.AppliesTo {
	case availability.ScopeAll:
		if r.DoctorID != "" {
			return fmt.Errorf("%w: doctorId must be empty when appliesTo is all", ErrInvalid)
		}
	case availability.ScopeDoctor:
		if r.DoctorID == "" {
			return fmt.Errorf("%w: doctorId is required when appliesTo is doctor", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: appliesTo must be all or doctor", ErrInvalid)
	}
	if r.Type == availability.OverrideHoliday && (len(r.CustomSessions) > 0 || len(r.CustomBreaks) > 0) {
		return fmt.Errorf("%w: holidays cannot carry custom sessions", ErrInvalid)
	}
	if err := availability.ValidateDay(r.CustomSessions, r.CustomBreaks); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	return nil
}
