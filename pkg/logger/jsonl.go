package logger

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"time"

	"tc2100/pkg/observation"
)

type JSONLWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS               string   `json:"ts"`
	MeterTime        string   `json:"meter_time"`
	ThermocoupleType string   `json:"thermocouple_type"`
	Units            string   `json:"units"`
	Channel1         *float64 `json:"channel_1"`
	Channel2         *float64 `json:"channel_2"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

// Consume writes one JSON object per observation until ctx ends or in
// closes.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan observation.Observation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-in:
			if !ok {
				return
			}
			_ = j.enc.Encode(record(obs))
		}
	}
}

func record(obs observation.Observation) jsonRecord {
	return jsonRecord{
		TS:               obs.SystemTime.UTC().Format(time.RFC3339Nano),
		MeterTime:        meterClock(obs.MeterTime),
		ThermocoupleType: obs.ThermocoupleType.String(),
		Units:            obs.Units.String(),
		Channel1:         jsonTemp(obs.ChannelTemp[0]),
		Channel2:         jsonTemp(obs.ChannelTemp[1]),
	}
}

// jsonTemp maps the NaN sentinel to null; JSON has no NaN literal.
func jsonTemp(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
