package view

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// KPI mirrors one entry of the record's KPI list field.
type KPI struct {
	Label      string         `json:"label"`
	Value      flexibleString `json:"value"`
	Target     flexibleString `json:"target"`
	Icon       string         `json:"icon"`
	UnitSuffix string         `json:"unit_suffix"`
	Color      string         `json:"color"`
}

// flexibleString accepts both JSON strings and JSON numbers; source records
// are inconsistent about which one KPI values arrive as.
type flexibleString string

func (value *flexibleString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*value = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var stringValue string
		if unmarshalErr := json.Unmarshal(data, &stringValue); unmarshalErr != nil {
			return unmarshalErr
		}
		*value = flexibleString(stringValue)
		return nil
	}
	*value = flexibleString(trimmed)
	return nil
}

func (value flexibleString) String() string {
	return string(value)
}

// DefaultKPIs is the fixed fallback set rendered when the record carries no
// parseable KPI list.
func DefaultKPIs() []KPI {
	return []KPI{
		{Label: "Lead Response Time", Value: "48", Target: "4", Icon: "clock", UnitSuffix: "h", Color: "#2563eb"},
		{Label: "Pipeline Coverage", Value: "2.1", Target: "3.0", Icon: "layers", UnitSuffix: "x", Color: "#16a34a"},
		{Label: "Win Rate", Value: "18", Target: "25", Icon: "trophy", UnitSuffix: "%", Color: "#d97706"},
		{Label: "Marketing-Sourced Revenue", Value: "31", Target: "40", Icon: "chart", UnitSuffix: "%", Color: "#9333ea"},
	}
}

// ParseKPIs decodes the JSON-encoded KPI list field. An absent or unparseable
// field degrades to the default set; the failure is logged once and never
// propagates.
func ParseKPIs(rawField string, logger *zap.Logger) []KPI {
	trimmed := strings.TrimSpace(rawField)
	if trimmed == "" {
		return DefaultKPIs()
	}

	var parsed []KPI
	if unmarshalErr := json.Unmarshal([]byte(trimmed), &parsed); unmarshalErr != nil {
		if logger != nil {
			logger.Debug("kpi_field_unparseable", zap.Error(unmarshalErr))
		}
		return DefaultKPIs()
	}
	if len(parsed) == 0 {
		return DefaultKPIs()
	}
	return parsed
}
