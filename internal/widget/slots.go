package widget

import (
	"fmt"
	"time"
)

const (
	workdayStart = 9 * 60  // minutes after midnight
	workdayEnd   = 17 * 60 // last bookable start, inclusive
	slotStep     = 30
)

// TimeSlots lists every bookable start time of a working day in HH:MM.
func TimeSlots() []string {
	slots := make([]string, 0, (workdayEnd-workdayStart)/slotStep+1)
	for m := workdayStart; m <= workdayEnd; m += slotStep {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// MinBookableDate is the first date a customer may pick: the day after now.
func MinBookableDate(now time.Time) string {
	return now.AddDate(0, 0, 1).Format(dateLayout)
}

func isSlot(v string) bool {
	for _, s := range TimeSlots() {
		if s == v {
			return true
		}
	}
	return false
}
