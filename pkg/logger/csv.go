// Package logger provides the output sinks that record decoded
// observations: a CSV writer matching the dump format and a JSONL
// writer for machine consumers.
package logger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"tc2100/pkg/observation"
)

var csvHeader = []string{
	"system_time", "meter_time", "thermocouple_type", "units",
	"channel_1", "channel_2",
}

type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Consume writes one row per observation until ctx ends or in closes.
func (c *CSVWriter) Consume(ctx context.Context, in <-chan observation.Observation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-in:
			if !ok {
				return
			}
			c.write(obs)
		}
	}
}

func (c *CSVWriter) write(obs observation.Observation) {
	if !c.wroteHeader {
		_ = c.w.Write(csvHeader)
		c.wroteHeader = true
	}
	_ = c.w.Write([]string{
		obs.SystemTime.UTC().Format(time.RFC3339Nano),
		meterClock(obs.MeterTime),
		obs.ThermocoupleType.String(),
		obs.Units.String(),
		formatTemp(obs.ChannelTemp[0]),
		formatTemp(obs.ChannelTemp[1]),
	})
	// The meter emits one message per second; flush per row so a tail -f
	// on the output file tracks the device.
	c.w.Flush()
}

func formatTemp(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// meterClock renders the power-on counter the way the meter's own
// display does (hours run past 99 without wrapping).
func meterClock(d time.Duration) string {
	hours, minutes, seconds := observation.SplitMeterTime(d)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
