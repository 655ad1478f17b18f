package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

var (
	isoDatePattern  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	ampmPattern     = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*([ap])\.?\s*m\b\.?`)
	clock24Pattern  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?::[0-5]\d)?\b`)
	bareHourPattern = regexp.MustCompile(`^\s*(?:at\s+)?(\d{1,2})\s*$`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(?:day|nesday|sday|rsday|urday)?\b`)
	idPattern       = regexp.MustCompile(`#?\s*(\d+)`)
)

var weekdayPrefixes = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ExtractDate finds a date in free text: an ISO date, "today", "tomorrow",
// or a weekday name. Weekday names resolve to the next occurrence, never
// today.
func ExtractDate(msg string, today clinictime.Date) (clinictime.Date, bool) {
	for _, raw := range isoDatePattern.FindAllString(msg, -1) {
		if d, err := clinictime.ParseDate(raw); err == nil {
			return d, true
		}
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "tomorrow"):
		return today.AddDays(1), true
	case strings.Contains(lower, "today"):
		return today, true
	}
	if m := weekdayPattern.FindStringSubmatch(lower); m != nil {
		target := weekdayPrefixes[m[1][:3]]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return today.AddDays(ahead), true
	}
	return clinictime.Date{}, false
}

// ResolveDate normalizes a model-supplied date. Relative phrases become
// YYYY-MM-DD; anything unrecognized is passed through for the validator
// to reject.
func ResolveDate(raw string, today clinictime.Date) string {
	raw = strings.TrimSpace(raw)
	if _, err := clinictime.ParseDate(raw); err == nil {
		return raw
	}
	if d, ok := ExtractDate(raw, today); ok {
		return d.String()
	}
	return raw
}

// ExtractTime finds a time of day such as "9am", "9:30 pm" or "14:00".
func ExtractTime(msg string) (clinictime.Clock, bool) {
	if m := ampmPattern.FindStringSubmatch(msg); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if strings.EqualFold(m[3], "p") {
			hour += 12
		}
		return clinictime.NewClock(hour, minute, 0), true
	}
	if m := clock24Pattern.FindStringSubmatch(msg); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return clinictime.NewClock(hour, minute, 0), true
	}
	return 0, false
}

// bareHour reads a reply like "9" or "at 3" given when asked for a time.
// Hours 1-7 mean afternoon because the clinic is never open before 8 AM.
func bareHour(msg string) (clinictime.Clock, bool) {
	m := bareHourPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	switch {
	case hour >= 1 && hour <= 7:
		hour += 12
	case hour > 23:
		return 0, false
	}
	return clinictime.NewClock(hour, 0, 0), true
}

var serviceKeywords = []struct {
	service  string
	keywords []string
}{
	{"Dental Check-up", []string{"dental", "dentist", "tooth", "teeth", "gum"}},
	{"Medical Certificate", []string{"certificate", "med cert", "clearance", "excuse"}},
	{"Vaccination", []string{"vaccin", "shot", "immuniz", "booster"}},
	{"First Aid", []string{"first aid", "wound", "cut", "injur", "sprain", "bleed", "burn"}},
	{"Medical Consultation", []string{"consult", "check-up", "checkup", "fever", "sick", "headache", "cough", "doctor"}},
}

// MatchService maps free text onto one of the clinic's services. A number
// picks from the listed services.
func MatchService(msg string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(msg))
	if n, err := strconv.Atoi(lower); err == nil && n >= 1 && n <= len(appointments.Services) {
		return appointments.Services[n-1], true
	}
	for _, svc := range appointments.Services {
		if strings.Contains(lower, strings.ToLower(svc)) {
			return svc, true
		}
	}
	for _, entry := range serviceKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.service, true
			}
		}
	}
	return "", false
}

// MatchUrgency maps free text onto Low, Normal or High.
func MatchUrgency(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "not urgent", "low", "whenever", "routine", "no rush"):
		return "Low", true
	case containsAny(lower, "high", "urgent", "emergency", "asap", "severe"):
		return "High", true
	case containsAny(lower, "normal", "medium", "regular", "moderate"):
		return "Normal", true
	}
	return "", false
}

// extractID reads an appointment number like "23" or "#23".
func extractID(msg string) (int64, bool) {
	m := idPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil && id > 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
