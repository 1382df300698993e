package farm

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar date format used by activity logs.
const DateLayout = "2006-01-02"

// Sub-activity tags as stored in the datastore.
const (
	TagNutrient = "nutrient_management"
	TagWater    = "water_management"
	TagPest     = "pest_management"
)

var (
	// ErrUnrecognizedActivity marks entries whose subActivity is not one of
	// the three tracked kinds. Callers skip these silently.
	ErrUnrecognizedActivity = errors.New("unrecognized sub-activity")

	// ErrMalformedActivity marks tracked entries with missing or invalid fields.
	ErrMalformedActivity = errors.New("malformed activity entry")

	// ErrUnreadableLogs marks a farmActivityLogs node that is not an object.
	ErrUnreadableLogs = errors.New("unreadable activity logs")
)

// EntryRef locates an entry inside a user's activity logs.
type EntryRef struct {
	CropID string
	LogID  string
}

func (r EntryRef) String() string {
	return r.CropID + "/" + r.LogID
}

// Activity is a recurring farm task with a start date and an interval.
// The set of implementations is closed to this package.
type Activity interface {
	Ref() EntryRef
	// Start is the last time the task was done.
	Start() time.Time
	// IntervalDays is how long after Start the task is due again.
	IntervalDays() int
	activity()
}

// NutrientManagement tracks fertilizer applications. Only the first
// application in the log is considered.
type NutrientManagement struct {
	Entry           EntryRef
	ApplicationDate time.Time
	GapDays         int
}

// WaterManagement tracks irrigation.
type WaterManagement struct {
	Entry              EntryRef
	LastIrrigationDate time.Time
	FrequencyDays      int
}

// PestManagement tracks pesticide sprays.
type PestManagement struct {
	Entry         EntryRef
	LastSprayDate time.Time
	SprayInterval int
}

func (a NutrientManagement) Ref() EntryRef     { return a.Entry }
func (a NutrientManagement) Start() time.Time  { return a.ApplicationDate }
func (a NutrientManagement) IntervalDays() int { return a.GapDays }
func (NutrientManagement) activity()           {}

func (a WaterManagement) Ref() EntryRef     { return a.Entry }
func (a WaterManagement) Start() time.Time  { return a.LastIrrigationDate }
func (a WaterManagement) IntervalDays() int { return a.FrequencyDays }
func (WaterManagement) activity()           {}

func (a PestManagement) Ref() EntryRef     { return a.Entry }
func (a PestManagement) Start() time.Time  { return a.LastSprayDate }
func (a PestManagement) IntervalDays() int { return a.SprayInterval }
func (PestManagement) activity()           {}

// DueDate is the start date plus the interval in days.
func DueDate(a Activity) time.Time {
	return a.Start().AddDate(0, 0, a.IntervalDays())
}

// IsDue reports whether today is on or after the activity's due date.
// Only the calendar date of today is considered.
func IsDue(a Activity, today time.Time) bool {
	return !DateOf(today).Before(DueDate(a))
}

// DateOf truncates t to midnight UTC of its calendar date in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseActivity converts a raw datastore entry into its typed form.
func ParseActivity(ref EntryRef, raw RawEntry) (Activity, error) {
	tag, _ := raw["subActivity"].(string)
	switch tag {
	case TagNutrient:
		return parseNutrient(ref, raw)
	case TagWater:
		date, err := dateField(raw, "lastIrrigationDate")
		if err != nil {
			return nil, malformed(ref, err)
		}
		days, err := daysField(raw, "frequencyDays")
		if err != nil {
			return nil, malformed(ref, err)
		}
		return WaterManagement{Entry: ref, LastIrrigationDate: date, FrequencyDays: days}, nil
	case TagPest:
		date, err := dateField(raw, "lastSprayDate")
		if err != nil {
			return nil, malformed(ref, err)
		}
		days, err := daysField(raw, "sprayInterval")
		if err != nil {
			return nil, malformed(ref, err)
		}
		return PestManagement{Entry: ref, LastSprayDate: date, SprayInterval: days}, nil
	default:
		return nil, fmt.Errorf("%s: %w %q", ref, ErrUnrecognizedActivity, tag)
	}
}

func parseNutrient(ref EntryRef, raw RawEntry) (Activity, error) {
	apps, ok := raw["applications"].([]any)
	if !ok || len(apps) == 0 {
		return nil, malformed(ref, errors.New("missing applications[0]"))
	}
	first, ok := apps[0].(map[string]any)
	if !ok {
		return nil, malformed(ref, errors.New("applications[0] is not an object"))
	}
	date, err := dateField(first, "applicationDate")
	if err != nil {
		return nil, malformed(ref, err)
	}
	days, err := daysField(first, "gapDays")
	if err != nil {
		return nil, malformed(ref, err)
	}
	return NutrientManagement{Entry: ref, ApplicationDate: date, GapDays: days}, nil
}

// ParseLogs walks every entry in logs in a stable order. Unrecognized
// entries are dropped; malformed ones are returned in errs so the caller can
// log them and carry on.
func ParseLogs(logs ActivityLogs) (activities []Activity, errs []error) {
	crops := make([]string, 0, len(logs))
	for crop := range logs {
		crops = append(crops, crop)
	}
	sort.Strings(crops)

	for _, crop := range crops {
		entries := logs[crop]
		ids := make([]string, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			a, err := ParseActivity(EntryRef{CropID: crop, LogID: id}, entries[id])
			switch {
			case err == nil:
				activities = append(activities, a)
			case errors.Is(err, ErrUnrecognizedActivity):
			default:
				errs = append(errs, err)
			}
		}
	}
	return activities, errs
}

// --------------------------------------------------------------------------
// Field helpers
// --------------------------------------------------------------------------

func malformed(ref EntryRef, err error) error {
	return fmt.Errorf("%s: %w: %v", ref, ErrMalformedActivity, err)
}

func dateField(raw map[string]any, key string) (time.Time, error) {
	s, ok := raw[key].(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}

func daysField(raw map[string]any, key string) (int, error) {
	v, exists := raw[key]
	if !exists {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, ok := ExtractInt(v)
	if !ok {
		return 0, fmt.Errorf("%s is not an integer: %v", key, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s is negative: %d", key, n)
	}
	return n, nil
}
