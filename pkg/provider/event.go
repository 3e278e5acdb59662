package provider

import "time"

// Event is the normalized calendar event shared by all vendor adapters.
type Event struct {
	Id          string // empty until assigned by the vendor
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Timezone    string // IANA zone name the vendor stores the event in
	HTMLLink    string // vendor deep link, when the vendor provides one
}
