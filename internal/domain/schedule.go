package domain

// Frequency is how often a rule's schedule fires.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
)

// Weekday uses cron-style day tokens so schedules render directly into
// cron specs.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

// WorkingWeek is the deployment's standard operating week, applied when a
// DAILY schedule is normalized. Collections floors run Monday through
// Saturday.
var WorkingWeek = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Schedule is the canonical run schedule for a rule. Exactly one of Days and
// DayOfMonth is semantically active: Days for DAILY/WEEKLY, DayOfMonth for
// MONTHLY. Time is always required, 24h "HH:MM".
type Schedule struct {
	Frequency  Frequency `json:"frequency"`
	Time       string    `json:"time"`
	Days       []Weekday `json:"days,omitempty"`
	DayOfMonth int       `json:"dayOfMonth,omitempty"`
}
