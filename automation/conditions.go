package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	models "homehub/database/models_pkg"
	"homehub/devices"
)

// StateReader is the part of devices.Controller conditions need
type StateReader interface {
	GetDeviceState(ctx context.Context, deviceID string) (devices.State, error)
}

// EvaluateConditions reports whether c holds at now. When it does not, the
// returned string names the failing condition.
//
// time is one-sided: "22:00" holds from 22:00 until midnight. Adding before
// turns it into a window; a before earlier than time wraps past midnight.
// A device whose state cannot be read does not block the automation.
func EvaluateConditions(ctx context.Context, c models.Conditions, now time.Time, states StateReader) (bool, string) {
	if c.IsZero() {
		return true, ""
	}
	minute := now.Hour()*60 + now.Minute()

	from, hasFrom := clockOrNone(c.Time)
	until, hasUntil := clockOrNone(c.Before)
	switch {
	case hasFrom && hasUntil && until <= from:
		if minute < from && minute >= until {
			return false, fmt.Sprintf("outside %s-%s", c.Time, c.Before)
		}
	case hasFrom && minute < from:
		return false, fmt.Sprintf("before %s", c.Time)
	case hasUntil && minute >= until:
		return false, fmt.Sprintf("not before %s", c.Before)
	}

	if len(c.DaysOfWeek) > 0 {
		today := models.Weekday(now)
		allowed := false
		for _, d := range c.DaysOfWeek {
			if d == today {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, fmt.Sprintf("day %d not in %v", today, c.DaysOfWeek)
		}
	}

	if states != nil {
		for _, want := range c.DeviceStates {
			state, err := states.GetDeviceState(ctx, want.DeviceID)
			if err != nil || state == nil {
				continue
			}
			got := state.StateString()
			if got != "" && !strings.EqualFold(got, want.State) {
				return false, fmt.Sprintf("%s is %s, want %s", want.DeviceID, got, want.State)
			}
		}
	}
	return true, ""
}

func clockOrNone(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	m, err := models.ParseClock(s)
	if err != nil {
		return 0, false
	}
	return m, true
}
