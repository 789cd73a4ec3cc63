package foxglove

// ObservationSchema describes the JSON record published for every
// decoded observation.
const ObservationSchema = `{
  "type": "object",
  "properties": {
    "ts": { "type": "string" },
    "meter_time": { "type": "string" },
    "thermocouple_type": { "type": "string" },
    "units": { "type": "string" },
    "channel_1": { "type": ["number", "null"] },
    "channel_2": { "type": ["number", "null"] }
  },
  "required": ["ts", "meter_time", "thermocouple_type", "units"]
}`

// TemperatureSchema is the per-channel plot message.
const TemperatureSchema = `{
  "type": "object",
  "properties": {
    "timestamp": {
      "type": "object",
      "properties": {
        "sec": { "type": "integer" },
        "nsec": { "type": "integer" }
      }
    },
    "channel": { "type": "integer" },
    "value": { "type": "number" },
    "unit": { "type": "string" }
  },
  "required": ["timestamp", "channel", "value", "unit"]
}`

type Config struct {
	WSAddr string
	Name   string

	Topic          string
	ChannelID      uint64
	SchemaName     string
	SchemaEncoding string
	Schema         string
	Encoding       string

	TempTopic      string
	TempChannelID  uint64
	TempSchemaName string
	TempSchema     string

	SendBuf int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:         "127.0.0.1:8765",
		Name:           "tc2100dump",
		Topic:          "tc2100/observation",
		ChannelID:      1,
		SchemaName:     "tc2100.Observation",
		SchemaEncoding: "jsonschema",
		Schema:         ObservationSchema,
		Encoding:       "json",
		TempTopic:      "/tc2100/temperature",
		TempChannelID:  2,
		TempSchemaName: "tc2100.Temperature",
		TempSchema:     TemperatureSchema,
		SendBuf:        32,
	}
}
