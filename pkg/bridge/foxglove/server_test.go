package foxglove

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"tc2100/pkg/observation"
)

func TestAdvertiseChannels(t *testing.T) {
	srv := NewServer(DefaultConfig(), nil)
	msg := srv.advertise()
	if len(msg.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(msg.Channels))
	}
	if msg.Channels[0].ID != srv.cfg.ChannelID || msg.Channels[0].Topic != srv.cfg.Topic {
		t.Fatalf("unexpected observation channel: %+v", msg.Channels[0])
	}
	if msg.Channels[1].ID != srv.cfg.TempChannelID || msg.Channels[1].Topic != srv.cfg.TempTopic {
		t.Fatalf("unexpected temperature channel: %+v", msg.Channels[1])
	}
}

func TestNewServerSeparatesChannelIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempChannelID = cfg.ChannelID
	srv := NewServer(cfg, nil)
	if srv.cfg.TempChannelID == srv.cfg.ChannelID {
		t.Fatalf("channel ids must not collide: %d", srv.cfg.ChannelID)
	}
}

func TestObservationMessage(t *testing.T) {
	ts := time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC)
	obs := observation.Observation{
		ChannelTemp:      [2]float64{22.8, math.NaN()},
		Units:            observation.Celsius,
		ThermocoupleType: observation.TypeK,
		MeterTime:        2*time.Hour + 28*time.Minute + 30*time.Second,
	}
	msg := observationMessage(obs, ts)
	if msg.TS != "2026-08-27T09:30:00Z" {
		t.Fatalf("unexpected ts: %s", msg.TS)
	}
	if msg.MeterTime != "02:28:30" {
		t.Fatalf("unexpected meter time: %s", msg.MeterTime)
	}
	if msg.Channel1 == nil || *msg.Channel1 != 22.8 {
		t.Fatalf("unexpected channel 1: %v", msg.Channel1)
	}
	if msg.Channel2 != nil {
		t.Fatalf("NaN channel should be null, got %v", *msg.Channel2)
	}
}

func TestTemperatureMessagesSkipMissingProbes(t *testing.T) {
	ts := time.Unix(100, 5)
	obs := observation.Observation{
		ChannelTemp:      [2]float64{math.NaN(), 296.5},
		Units:            observation.Kelvin,
		ThermocoupleType: observation.TypeK,
	}
	msgs := temperatureMessages(obs, ts)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 plot point, got %d", len(msgs))
	}
	if msgs[0].Channel != 2 || msgs[0].Value != 296.5 || msgs[0].Unit != "K" {
		t.Fatalf("unexpected plot point: %+v", msgs[0])
	}
	if msgs[0].Timestamp.Sec != 100 || msgs[0].Timestamp.Nsec != 5 {
		t.Fatalf("unexpected stamp: %+v", msgs[0].Timestamp)
	}
}

func TestEncodeMessageDataLayout(t *testing.T) {
	frame := EncodeMessageData(7, 42, []byte{0xAA, 0xBB})
	if len(frame) != 15 {
		t.Fatalf("unexpected frame length: %d", len(frame))
	}
	if frame[0] != BinaryOpMessageData {
		t.Fatalf("unexpected opcode: 0x%02x", frame[0])
	}
	if binary.LittleEndian.Uint32(frame[1:5]) != 7 {
		t.Fatalf("unexpected subscription id")
	}
	if binary.LittleEndian.Uint64(frame[5:13]) != 42 {
		t.Fatalf("unexpected log time")
	}
	if frame[13] != 0xAA || frame[14] != 0xBB {
		t.Fatalf("payload not copied: % x", frame[13:])
	}
}
