package main

import (
	"context"
	"math"
	"time"

	"tc2100/pkg/engine"
	"tc2100/pkg/observation"
)

// Synthetic probe profiles: channel 1 drifts around room temperature,
// channel 2 looks like a slow oven cycle and periodically drops out as
// if the probe were unplugged.
const (
	mockCh1MeanC      = 23.0
	mockCh1AmplitudeC = 1.5
	mockCh1FreqHz     = 0.05

	mockCh2MeanC      = 61.0
	mockCh2AmplitudeC = 8.0
	mockCh2FreqHz     = 0.02

	mockDropoutFreqHz    = 0.01
	mockDropoutThreshold = 0.9
)

func runMockPublisher(ctx context.Context, hub *engine.Hub, hz int) {
	if hz <= 0 {
		hz = 1
	}
	interval := time.Second / time.Duration(hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			hub.Publish(mockObservation(elapsed.Seconds(), now, elapsed))
		}
	}
}

func mockObservation(t float64, now time.Time, elapsed time.Duration) observation.Observation {
	ch1 := mockCh1MeanC + mockCh1AmplitudeC*math.Sin(2*math.Pi*mockCh1FreqHz*t)
	ch2 := mockCh2MeanC + mockCh2AmplitudeC*math.Sin(2*math.Pi*mockCh2FreqHz*t)
	if math.Sin(2*math.Pi*mockDropoutFreqHz*t) > mockDropoutThreshold {
		ch2 = math.NaN()
	}

	return observation.Observation{
		// The real meter reports tenths of a degree.
		ChannelTemp:      [2]float64{roundTenth(ch1), roundTenth(ch2)},
		Units:            observation.Celsius,
		ThermocoupleType: observation.TypeK,
		SystemTime:       now.UTC(),
		MeterTime:        elapsed.Truncate(time.Second),
	}
}

func roundTenth(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*10) / 10
}
