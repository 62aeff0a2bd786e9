package availability

import "sort"

// Override precedence for a doctor on a date:
//
//  1. a clinic-wide holiday closes the day,
//  2. then a holiday scoped to the doctor,
//  3. then a special day; a doctor-specific record beats a clinic-wide one,
//     and among equals the most recently updated wins, then the lowest ID.
//
// Ordering never depends on the order the store returned the records in.

// ClinicHoliday returns the clinic-wide holiday on date, if any.
func ClinicHoliday(date string, overrides []HolidayOverride) *HolidayOverride {
	return pick(overrides, func(o HolidayOverride) bool {
		return o.Date == date && o.Type == OverrideHoliday && o.AppliesTo == ScopeAll
	}, nil)
}

// DoctorHoliday returns the holiday closing doctorID on date, if any.
func DoctorHoliday(doctorID, date string, overrides []HolidayOverride) *HolidayOverride {
	return pick(overrides, func(o HolidayOverride) bool {
		return o.Date == date && o.Type == OverrideHoliday && o.AppliesTo == ScopeDoctor && o.DoctorID == doctorID
	}, nil)
}

// SpecialDay returns the special day that governs doctorID on date, if any.
func SpecialDay(doctorID, date string, overrides []HolidayOverride) *HolidayOverride {
	specific := func(o HolidayOverride) bool {
		return o.AppliesTo != ScopeAll && o.DoctorID == doctorID
	}
	return pick(overrides, func(o HolidayOverride) bool {
		return o.Date == date && o.Type == OverrideSpecialDay && (o.AppliesTo == ScopeAll || o.DoctorID == doctorID)
	}, specific)
}

func pick(overrides []HolidayOverride, match func(HolidayOverride) bool, preferred func(HolidayOverride) bool) *HolidayOverride {
	var candidates []HolidayOverride
	for _, o := range overrides {
		if match(o) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if preferred != nil {
			pa, pb := preferred(a), preferred(b)
			if pa != pb {
				return pa
			}
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	winner := candidates[0]
	return &winner
}
