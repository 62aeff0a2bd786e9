package availability

import "time"

// Session is a bookable block of the day, cut into slots of SlotDuration minutes.
type Session struct {
	ID           string `json:"id" bson:"id"`
	Name         string `json:"name" bson:"name"`
	Start        string `json:"start" bson:"start"`
	End          string `json:"end" bson:"end"`
	SlotDuration int    `json:"slotDuration" bson:"slotDuration"`
	IsActive     bool   `json:"isActive" bson:"isActive"`
}

// Break removes any slot label that falls inside it.
type Break struct {
	ID       string `json:"id" bson:"id"`
	Name     string `json:"name" bson:"name"`
	Start    string `json:"start" bson:"start"`
	End      string `json:"end" bson:"end"`
	IsActive bool   `json:"isActive" bson:"isActive"`
}

// DayAvailability is the schedule of one weekday.
type DayAvailability struct {
	IsAvailable bool      `json:"isAvailable" bson:"isAvailable"`
	Sessions    []Session `json:"sessions" bson:"sessions"`
	Breaks      []Break   `json:"breaks" bson:"breaks"`
}

// WeeklyTemplate maps lowercase weekday names ("monday".."sunday") to a day schedule.
type WeeklyTemplate map[string]DayAvailability

// Day returns the schedule for weekday. A missing day is unavailable.
func (w WeeklyTemplate) Day(weekday string) (DayAvailability, bool) {
	if w == nil {
		return DayAvailability{}, false
	}
	day, ok := w[weekday]
	return day, ok
}

// DoctorSchedule is the slice of a doctor record the resolver needs.
type DoctorSchedule struct {
	DoctorID string         `json:"doctorId"`
	Weekly   WeeklyTemplate `json:"availability"`
}

// OverrideType distinguishes closures from custom-hours days.
type OverrideType string

const (
	OverrideHoliday    OverrideType = "holiday"
	OverrideSpecialDay OverrideType = "special_day"
)

// Scope says who an override applies to.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeDoctor Scope = "doctor"
)

// HolidayOverride closes or reshapes a single date for the clinic or for one doctor.
type HolidayOverride struct {
	ID             string       `json:"id" bson:"_id"`
	Date           string       `json:"date" bson:"date"`
	Name           string       `json:"name" bson:"name"`
	Type           OverrideType `json:"type" bson:"type"`
	AppliesTo      Scope        `json:"appliesTo" bson:"appliesTo"`
	DoctorID       string       `json:"doctorId,omitempty" bson:"doctorId,omitempty"`
	IsFullDay      bool         `json:"isFullDay" bson:"isFullDay"`
	CustomSessions []Session    `json:"customSessions,omitempty" bson:"customSessions,omitempty"`
	CustomBreaks   []Break      `json:"customBreaks,omitempty" bson:"customBreaks,omitempty"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// BookedSlot is the projection of a booking used for occupancy.
type BookedSlot struct {
	DoctorID string        `json:"doctorId"`
	Date     string        `json:"date"`
	Time     string        `json:"time"`
	Status   BookingStatus `json:"status"`
}

// SlotStatus is the state of a single rendered slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	// SlotBreak only appears in calendar previews of closed days.
	SlotBreak SlotStatus = "break"
)

// SlotView is one "HH:MM" label and its state.
type SlotView struct {
	Time   string     `json:"time"`
	Status SlotStatus `json:"status"`
}

// DayPreview is the admin calendar rendering of a date.
type DayPreview struct {
	DoctorID      string     `json:"doctorId"`
	Date          string     `json:"date"`
	Weekday       string     `json:"weekday"`
	Closed        bool       `json:"closed"`
	ClosureReason string     `json:"closureReason,omitempty"`
	Slots         []SlotView `json:"slots"`
}
