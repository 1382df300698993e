// Package rules maps a user's current weather and farm activity log to the
// alerts that should be sent. Everything here is pure: the caller supplies
// the snapshot, the parsed activities, and today's date.
//
// Two independent families:
//   - weather rules, evaluated once per snapshot
//   - activity rules, evaluated once per activity entry
package rules

import (
	"time"

	"github.com/krishisakhi/farm-alerts/internal/farm"
)

// --------------------------------------------------------------------------
// Thresholds
// --------------------------------------------------------------------------

const (
	RainChanceThreshold = 60   // rain alert when derived chance exceeds this
	HeatThreshold       = 35.0 // °C, heat alert strictly above
	HumidityThreshold   = 75.0 // %, pest risk strictly above
	SprayMaxTemperature = 32.0 // °C, spray advisory strictly below (dry only)
)

// Alert is one fired rule, rendered in the user's language.
type Alert struct {
	Rule    string
	Title   string
	Message string
	Type    string
	// Entry is set for activity alerts only.
	Entry *farm.EntryRef
}

func newAlert(rule, typ, lang string) Alert {
	title, msg := Messages(rule, lang)
	return Alert{Rule: rule, Title: title, Message: msg, Type: typ}
}

// WeatherAlerts evaluates the weather rules against one snapshot. Rules are
// independent; each one that matches produces one alert.
func WeatherAlerts(w farm.WeatherSnapshot, lang string) []Alert {
	var alerts []Alert

	if w.RainPresent && w.RainChance() > RainChanceThreshold {
		alerts = append(alerts, newAlert(RuleRain, farm.TypeWeather, lang))
	}
	if w.Temperature > HeatThreshold {
		alerts = append(alerts, newAlert(RuleHeat, farm.TypeWeather, lang))
	}
	if w.Humidity > HumidityThreshold {
		alerts = append(alerts, newAlert(RuleHumidity, farm.TypePest, lang))
	}
	if !w.RainPresent && w.Temperature < SprayMaxTemperature {
		alerts = append(alerts, newAlert(RuleSpray, farm.TypeWeather, lang))
	}
	return alerts
}

// ActivityAlert returns the reminder for a if it is due on today.
func ActivityAlert(a farm.Activity, today time.Time, lang string) (Alert, bool) {
	if !farm.IsDue(a, today) {
		return Alert{}, false
	}

	var alert Alert
	switch a.(type) {
	case farm.NutrientManagement:
		alert = newAlert(RuleFertilizer, farm.TypeFertilizer, lang)
	case farm.WaterManagement:
		alert = newAlert(RuleIrrigation, farm.TypeIrrigation, lang)
	case farm.PestManagement:
		alert = newAlert(RulePesticide, farm.TypePest, lang)
	default:
		return Alert{}, false
	}
	ref := a.Ref()
	alert.Entry = &ref
	return alert, true
}

// ActivityAlerts evaluates every activity and returns one alert per due entry.
func ActivityAlerts(activities []farm.Activity, today time.Time, lang string) []Alert {
	var alerts []Alert
	for _, a := range activities {
		if alert, ok := ActivityAlert(a, today, lang); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}
