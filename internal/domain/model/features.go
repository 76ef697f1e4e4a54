package model

// FeatureSet is a tier's capability bundle. The JSON shape matches the
// catalog rows stored in the features JSONB column.
type FeatureSet struct {
	// HistoryDays is the log retention window in days; nil means unlimited.
	HistoryDays *int             `json:"history_days"`
	Reminders   ReminderFeatures `json:"reminders"`
	Reports     ReportFeatures   `json:"reports"`
	Insights    string           `json:"insights"` // "basic" | "advanced" | "ai"
	Export      ExportFeatures   `json:"export"`
}

type ReminderFeatures struct {
	Enabled     bool     `json:"enabled"`
	MaxPerDay   int      `json:"max_per_day"`
	Methods     []string `json:"methods"`     // "email" | "sms"
	Frequencies []string `json:"frequencies"` // "daily" | "weekly" | ...
}

type ReportFeatures struct {
	Enabled     bool     `json:"enabled"`
	Methods     []string `json:"methods"`
	Frequencies []string `json:"frequencies"`
}

type ExportFeatures struct {
	CSV bool `json:"csv"`
	PDF bool `json:"pdf"`
}

// Resolve maps a dotted capability path onto a value of the bundle. The
// second return is false for paths outside the enumerated set; callers treat
// that as a denial, never as an error.
func (f FeatureSet) Resolve(path string) (any, bool) {
	switch path {
	case "history_days":
		if f.HistoryDays == nil {
			return "unlimited", true
		}
		return *f.HistoryDays, true
	case "reminders.enabled":
		return f.Reminders.Enabled, true
	case "reminders.max_per_day":
		return f.Reminders.MaxPerDay, true
	case "reminders.methods":
		return f.Reminders.Methods, true
	case "reminders.frequencies":
		return f.Reminders.Frequencies, true
	case "reports.enabled":
		return f.Reports.Enabled, true
	case "reports.methods":
		return f.Reports.Methods, true
	case "reports.frequencies":
		return f.Reports.Frequencies, true
	case "insights":
		return f.Insights, true
	case "export.csv":
		return f.Export.CSV, true
	case "export.pdf":
		return f.Export.PDF, true
	}
	return nil, false
}

// Truthiness for resolved feature values: booleans pass through, non-boolean
// values allow when non-empty/non-zero so limits remain available to callers.
func FeatureValueAllows(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val > 0
	case string:
		return val != ""
	case []string:
		return len(val) > 0
	case nil:
		return false
	}
	return true
}
