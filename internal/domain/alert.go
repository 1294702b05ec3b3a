package domain

// Metric types a threshold condition can target. Wire names follow the
// configuration subsystem's JSON.
const (
	MetricRequestCount   = "Count"
	MetricProcessingTime = "PTime"
)

// Alert delivery channels.
const (
	AlertTypeEmail = "email"
	AlertTypePhone = "phone"
	AlertTypeBoth  = "both"
)

// AlertCondition is a per-endpoint threshold rule. ThresholdValue is carried
// as text exactly as the configuration subsystem stores it; evaluation parses
// it and treats an unparseable threshold as a condition that never fires.
type AlertCondition struct {
	Endpoint       string `json:"api"`
	MetricType     string `json:"metricType"`
	Operator       string `json:"operator"`
	ThresholdValue string `json:"thresholdValue"`
	AlertPriority  string `json:"alertPriority"`
	AlertType      string `json:"alertType"`
}

// AlertConfiguration is the single configuration blob owned by the external
// configuration subsystem. The pipeline loads it fresh at the start of each
// day's pass and treats it as immutable for that day.
type AlertConfiguration struct {
	Emails       []string         `json:"emails"`
	PhoneNumbers []string         `json:"phoneNumbers"`
	Conditions   []AlertCondition `json:"conditions"`
}

// AlertEvent is a triggered threshold crossing handed to the notification
// dispatcher.
type AlertEvent struct {
	Endpoint   string
	MetricType string
	Value      float64
	Threshold  float64
	Operator   string
	AlertType  string
	Priority   string
}
