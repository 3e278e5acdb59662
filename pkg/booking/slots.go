package booking

import (
	"context"
	"time"

	"github.com/callbook/callbook/pkg/provider"
	log "github.com/sirupsen/logrus"
)

// Slot is a bookable (date, time) pair in the deployment timezone. Slots only
// appear in availability responses and are never persisted.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// slotTimes is the fixed probe grid of local start times, in probe order.
// The midday gap is intentional.
var slotTimes = []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"}

const (
	maxAlternatives = 3
	searchDays      = 7
)

// findAlternativeSlots probes up to seven days starting at the requested date,
// day-major over the fixed time grid, and collects the first three free
// windows. The candidate matching the originally requested slot is skipped.
// Probes run sequentially, one vendor call each; a failed probe is skipped.
func findAlternativeSlots(
	ctx context.Context,
	adapter provider.CalendarAdapter,
	accessToken string,
	location *time.Location,
	requested time.Time,
	requestedTime string,
	duration time.Duration,
) []Slot {
	requestedDate := requested.In(location).Format(dateLayout)
	slots := make([]Slot, 0, maxAlternatives)

	for dayOffset := 0; dayOffset < searchDays; dayOffset++ {
		day := requested.In(location).AddDate(0, 0, dayOffset)
		date := day.Format(dateLayout)

		for _, startTime := range slotTimes {
			if date == requestedDate && startTime == requestedTime {
				continue
			}

			start, err := time.ParseInLocation(slotLayout, date+" "+startTime, location)
			if err != nil {
				continue
			}

			availability, err := adapter.CheckAvailability(ctx, accessToken, start, start.Add(duration))
			if err != nil {
				log.Warnf("Skipping slot probe %s %s: %v", date, startTime, err)
				continue
			}
			if availability.Available {
				slots = append(slots, Slot{Date: date, Time: startTime})
				if len(slots) == maxAlternatives {
					return slots
				}
			}
		}
	}
	return slots
}
