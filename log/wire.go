package log

import (
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogMessageWire is the JSON a plugin sends to the log_message host function.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire is one typed attribute of a plugin log record.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"` // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "any"
	Value string `json:"value"`
}

// Field converts the attribute to a zap field. Values that do not parse as
// their declared type are kept as strings.
func (a LogAttrWire) Field() zap.Field {
	switch a.Type {
	case "int64":
		if v, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			return zap.Int64(a.Key, v)
		}
	case "uint64":
		if v, err := strconv.ParseUint(a.Value, 10, 64); err == nil {
			return zap.Uint64(a.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(a.Value); err == nil {
			return zap.Bool(a.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(a.Value, 64); err == nil {
			return zap.Float64(a.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, a.Value); err == nil {
			return zap.Time(a.Key, v)
		}
	case "duration":
		if v, err := time.ParseDuration(a.Value); err == nil {
			return zap.Duration(a.Key, v)
		}
	case "json":
		return zap.Any(a.Key, rawJSON(a.Value))
	}
	return zap.String(a.Key, a.Value)
}

// rawJSON embeds an already encoded value in a zap log entry.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return []byte(r), nil
}

// ZapLevel maps the wire level onto zap; unknown levels log at info.
func (m LogMessageWire) ZapLevel() zapcore.Level {
	level, err := ParseLevel(m.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Emit writes the record to logger tagged with the plugin name.
func (m LogMessageWire) Emit(logger *zap.Logger, plugin string) {
	fields := make([]zap.Field, 0, len(m.Attrs)+2)
	fields = append(fields, zap.String("plugin", plugin))
	if !m.Timestamp.IsZero() {
		fields = append(fields, zap.Time("plugin_ts", m.Timestamp))
	}
	for _, attr := range m.Attrs {
		fields = append(fields, attr.Field())
	}

	if ce := logger.Check(m.ZapLevel(), m.Message); ce != nil {
		ce.Write(fields...)
	}
}
