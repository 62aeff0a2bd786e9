package availability

import "fmt"

// ValidateTemplate checks a weekly template before it is stored. The resolver
// itself tolerates malformed data; this guards the admin write path.
func ValidateTemplate(w WeeklyTemplate) error {
	for weekday, day := range w {
		if !IsWeekday(weekday) {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidTemplate, weekday)
		}
		if err := ValidateDay(day.Sessions, day.Breaks); err != nil {
			return fmt.Errorf("%s: %w", weekday, err)
		}
	}
	return nil
}

// ValidateDay checks sessions and breaks of a single day.
func ValidateDay(sessions []Session, breaks []Break) error {
	for i, s := range sessions {
		if s.SlotDuration <= 0 {
			return fmt.Errorf("%w: session %d slot duration must be positive", ErrInvalidTemplate, i)
		}
		if err := validateRange(s.Start, s.End); err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}
	}
	for i, b := range breaks {
		if err := validateRange(b.Start, b.End); err != nil {
			return fmt.Errorf("break %d: %w", i, err)
		}
	}
	return nil
}

func validateRange(start, end string) error {
	s, err := ParseClock(start)
	if err != nil {
		return err
	}
	e, err := ParseClock(end)
	if err != nil {
		return err
	}
	if s >= e {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidTemplate, start, end)
	}
	return nil
}
