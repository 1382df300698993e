// Package farm holds the domain records the alert job reads and writes:
// users with their farm activity logs, weather snapshots, and the
// notification records appended for each fired alert.
package farm

// User defaults, applied when a user record leaves the field empty.
const (
	DefaultLanguage = "en"
	DefaultCity     = "Sirsi"
)

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

// RawEntry is one activity log entry exactly as the datastore returns it.
type RawEntry = map[string]any

// ActivityLogs is the datastore shape of farmActivityLogs:
// crop id → log id → entry.
type ActivityLogs = map[string]map[string]RawEntry

// User is a registered farmer. Read-only to this service.
type User struct {
	ID                string       `json:"-"`
	PreferredLanguage string       `json:"preferredLanguage,omitempty"`
	Location          string       `json:"location,omitempty"`
	ActivityLogs      ActivityLogs `json:"farmActivityLogs,omitempty"`

	// LogsErr is set when the stored activity logs could not be read at
	// all. ActivityLogs is then empty; weather rules still apply.
	LogsErr error `json:"-"`
}

// Language returns the user's language, defaulting to "en".
func (u User) Language() string {
	if u.PreferredLanguage == "" {
		return DefaultLanguage
	}
	return u.PreferredLanguage
}

// City returns the user's location, defaulting to Sirsi.
func (u User) City() string {
	if u.Location == "" {
		return DefaultCity
	}
	return u.Location
}

// --------------------------------------------------------------------------
// Weather
// --------------------------------------------------------------------------

// WeatherSnapshot is the normalized provider reading for one city.
// Never persisted.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	RainPresent bool    `json:"rain_present"`
}

// RainChance derives a rain likelihood from presence of the provider's rain
// field: 80 when present, 10 otherwise.
func (w WeatherSnapshot) RainChance() int {
	if w.RainPresent {
		return 80
	}
	return 10
}

// --------------------------------------------------------------------------
// Notifications
// --------------------------------------------------------------------------

// Notification types.
const (
	TypeWeather    = "weather"
	TypeFertilizer = "fertilizer"
	TypeIrrigation = "irrigation"
	TypePest       = "pest"
	TypeTest       = "test"
)

// Notification is the record appended under a user's notification list.
// ID is assigned by the store.
type Notification struct {
	ID        string `json:"-"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	Type      string `json:"type"`
	Lang      string `json:"lang"`
	Read      bool   `json:"read"`
}
