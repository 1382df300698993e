package rules

// Rule identifiers. Stable across releases; used in logs and dedup keys.
const (
	RuleRain       = "rain"
	RuleHeat       = "heat"
	RuleHumidity   = "humidity"
	RuleSpray      = "spray"
	RuleFertilizer = "fertilizer"
	RuleIrrigation = "irrigation"
	RulePesticide  = "pesticide"
	RuleTest       = "test"
)

// text is one title/message pair.
type text struct {
	Title   string
	Message string
}

// localized holds the two supported renderings of a rule.
type localized struct {
	en text
	kn text
}

var catalog = map[string]localized{
	RuleRain: {
		en: text{"Weather Alert", "🌧 Rain expected. Protect your crops."},
		kn: text{"ಹವಾಮಾನ ಎಚ್ಚರಿಕೆ", "🌧 ಮಳೆ ಸಾಧ್ಯತೆ. ನಿಮ್ಮ ಬೆಳೆಗಳನ್ನು ರಕ್ಷಿಸಿ."},
	},
	RuleHeat: {
		en: text{"Irrigation Alert", "🔥 High temperature! Provide irrigation."},
		kn: text{"ನೀರಾವರಿ ಎಚ್ಚರಿಕೆ", "🔥 ಹೆಚ್ಚು ತಾಪಮಾನ! ನೀರಾವರಿ ನೀಡಿ."},
	},
	RuleHumidity: {
		en: text{"Pest Alert", "🐛 High pest risk due to humidity."},
		kn: text{"ಕೀಟ ಎಚ್ಚರಿಕೆ", "🐛 ಆರ್ದ್ರತೆಯಿಂದ ಕೀಟದ ಅಪಾಯ."},
	},
	RuleSpray: {
		en: text{"Spray Advisory", "☀️ Sunny weather. Safe to spray pesticide."},
		kn: text{"ಸಿಂಪಡಣೆ ಸಲಹೆ", "☀️ ಬಿಸಿಲಿನ ವಾತಾವರಣ. ಕೀಟನಾಶಕ ಸಿಂಪಡಿಸಲು ಸುರಕ್ಷಿತ."},
	},
	RuleFertilizer: {
		en: text{"Fertilizer Alert", "Time for next fertilizer dose."},
		kn: text{"ಗೊಬ್ಬರ ಎಚ್ಚರಿಕೆ", "ಮುಂದಿನ ಗೊಬ್ಬರದ ಡೋಸ್ ಸಮಯ ಬಂದಿದೆ."},
	},
	RuleIrrigation: {
		en: text{"Irrigation Alert", "Irrigation needed today."},
		kn: text{"ನೀರಾವರಿ ಎಚ್ಚರಿಕೆ", "ಇಂದು ನೀರಾವರಿ ಅಗತ್ಯವಿದೆ."},
	},
	RulePesticide: {
		en: text{"Pest Control Alert", "Time for the next pesticide spray."},
		kn: text{"ಕೀಟ ನಿಯಂತ್ರಣ ಎಚ್ಚರಿಕೆ", "ಮುಂದಿನ ಕೀಟನಾಶಕ ಸಿಂಪಡಣೆಯ ಸಮಯ ಬಂದಿದೆ."},
	},
	RuleTest: {
		en: text{"Test Notification", "This is a test notification from KrishiSakhi."},
		kn: text{"ಪರೀಕ್ಷಾ ಅಧಿಸೂಚನೆ", "ಇದು ಕೃಷಿಸಖಿಯಿಂದ ಪರೀಕ್ಷಾ ಅಧಿಸೂಚನೆ."},
	},
}

// Messages returns the title and message for rule in lang. Selection is
// binary: "en" gets English, every other code gets Kannada. Unknown rules
// return empty strings.
func Messages(rule, lang string) (title, message string) {
	l, ok := catalog[rule]
	if !ok {
		return "", ""
	}
	t := l.kn
	if lang == "en" {
		t = l.en
	}
	return t.Title, t.Message
}

// Rules lists every rule with catalog text.
func Rules() []string {
	return []string{
		RuleRain, RuleHeat, RuleHumidity, RuleSpray,
		RuleFertilizer, RuleIrrigation, RulePesticide, RuleTest,
	}
}
