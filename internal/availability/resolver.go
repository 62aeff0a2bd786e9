package availability

import "sort"

// dayPlan is the schedule in force for one doctor on one date after overrides.
type dayPlan struct {
	weekday  string
	closed   bool
	reason   string
	template DayAvailability
	day      DayAvailability
}

func planDay(doctor *DoctorSchedule, date string, overrides []HolidayOverride) dayPlan {
	if doctor == nil {
		return dayPlan{closed: true, reason: "doctor not found"}
	}
	weekday, err := WeekdayOf(date)
	if err != nil {
		return dayPlan{closed: true, reason: "invalid date"}
	}
	plan := dayPlan{weekday: weekday}
	plan.template, _ = doctor.Weekly.Day(weekday)

	if h := ClinicHoliday(date, overrides); h != nil {
		plan.closed, plan.reason = true, h.Name
		return plan
	}
	if h := DoctorHoliday(doctor.DoctorID, date, overrides); h != nil {
		plan.closed, plan.reason = true, h.Name
		return plan
	}
	if sd := SpecialDay(doctor.DoctorID, date, overrides); sd != nil {
		if sd.IsFullDay {
			plan.closed, plan.reason = true, sd.Name
			return plan
		}
		plan.day = DayAvailability{
			IsAvailable: true,
			Sessions:    sd.CustomSessions,
			Breaks:      sd.CustomBreaks,
		}
		return plan
	}
	plan.day = plan.template
	return plan
}

// ResolveSlots computes every slot of doctor on date with its booked/available
// state. It is pure: callers supply the overrides and bookings for the date.
// Unknown doctors, invalid dates and closed days yield an empty list.
func ResolveSlots(doctor *DoctorSchedule, date string, overrides []HolidayOverride, bookings []BookedSlot) []SlotView {
	plan := planDay(doctor, date, overrides)
	if plan.closed {
		return []SlotView{}
	}
	return renderDay(plan.day, occupiedTimes(doctor.DoctorID, date, bookings))
}

// AvailableTimes keeps only the open labels, preserving order.
func AvailableTimes(slots []SlotView) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.Status == SlotAvailable {
			out = append(out, s.Time)
		}
	}
	return out
}

// Preview renders a date for the admin calendar. Days closed by a holiday or a
// full-day special day show the slots the weekly template would have produced,
// marked as break, together with the closure name.
func Preview(doctor *DoctorSchedule, date string, overrides []HolidayOverride, bookings []BookedSlot) DayPreview {
	plan := planDay(doctor, date, overrides)
	preview := DayPreview{Date: date, Weekday: plan.weekday, Slots: []SlotView{}}
	if doctor != nil {
		preview.DoctorID = doctor.DoctorID
	}
	if plan.closed {
		preview.Closed = true
		preview.ClosureReason = plan.reason
		if plan.weekday != "" {
			for _, s := range renderDay(plan.template, nil) {
				preview.Slots = append(preview.Slots, SlotView{Time: s.Time, Status: SlotBreak})
			}
		}
		return preview
	}
	preview.Slots = renderDay(plan.day, occupiedTimes(doctor.DoctorID, date, bookings))
	if len(preview.Slots) == 0 {
		preview.Closed = true
		preview.ClosureReason = "not a working day"
	}
	return preview
}

func renderDay(day DayAvailability, occupied map[string]bool) []SlotView {
	slots := []SlotView{}
	if !day.IsAvailable || len(day.Sessions) == 0 {
		return slots
	}
	breaks := activeBreaks(day.Breaks)
	for _, session := range day.Sessions {
		if !session.IsActive || session.SlotDuration <= 0 {
			continue
		}
		start, err := ParseClock(session.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(session.End)
		if err != nil {
			continue
		}
		// half-open: a slot starting exactly at end is never emitted
		for t := start; t < end; t += session.SlotDuration {
			if inBreak(t, breaks) {
				continue
			}
			label := FormatClock(t)
			status := SlotAvailable
			if occupied[label] {
				status = SlotBooked
			}
			slots = append(slots, SlotView{Time: label, Status: status})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots
}

type clockRange struct{ start, end int }

func activeBreaks(breaks []Break) []clockRange {
	var out []clockRange
	for _, b := range breaks {
		if !b.IsActive {
			continue
		}
		start, err := ParseClock(b.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(b.End)
		if err != nil {
			continue
		}
		out = append(out, clockRange{start: start, end: end})
	}
	return out
}

func inBreak(t int, breaks []clockRange) bool {
	for _, b := range breaks {
		if b.start <= t && t < b.end {
			return true
		}
	}
	return false
}

func occupiedTimes(doctorID, date string, bookings []BookedSlot) map[string]bool {
	occupied := make(map[string]bool)
	for _, b := range bookings {
		if b.DoctorID != doctorID || b.Date != date || !IsOccupying(b.Status) {
			continue
		}
		occupied[NormalizeClock(b.Time)] = true
	}
	return occupied
}

// NormalizeClock zero-pads a parseable "H:MM" label and returns anything else unchanged.
func NormalizeClock(value string) string {
	if m, err := ParseClock(value); err == nil {
		return FormatClock(m)
	}
	return value
}
