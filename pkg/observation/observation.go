// Package observation implements the TC2100 wire format: the fixed
// 18-byte observation message emitted once per second over the meter's
// serial link, and the framer that recovers message boundaries from the
// unframed byte stream.
package observation

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// MessageSize is the length of one framed observation on the wire.
const MessageSize = 18

const (
	headerHi = 0x65
	headerLo = 0x14

	trailerHi = 0x0D
	trailerLo = 0x0A

	flagValid   = 0x08
	flagInvalid = 0x40

	maskLowNibble = 0x0F
	unitMarker    = 0x80

	// Written into the measurement field of an invalid channel.
	// Decoders must key off the status flag, never this value.
	invalidPlaceholder = -32768
)

// FormatError reports bytes that do not form a valid observation message.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "observation: " + e.Reason
}

// TemperatureUnit is the display unit reported by the meter.
// It applies to both channels at once.
type TemperatureUnit uint8

const (
	Celsius    TemperatureUnit = 1
	Fahrenheit TemperatureUnit = 2
	Kelvin     TemperatureUnit = 3
)

func (u TemperatureUnit) String() string {
	switch u {
	case Celsius:
		return "C"
	case Fahrenheit:
		return "F"
	case Kelvin:
		return "K"
	}
	return fmt.Sprintf("TemperatureUnit(%d)", uint8(u))
}

// UnitFromWire converts a raw unit code into a TemperatureUnit,
// rejecting values outside the defined range.
func UnitFromWire(v byte) (TemperatureUnit, error) {
	if v < byte(Celsius) || v > byte(Kelvin) {
		return 0, &FormatError{Reason: fmt.Sprintf("unknown temperature unit 0x%02x", v)}
	}
	return TemperatureUnit(v), nil
}

// UnitFromName converts a unit name ("C", "F", "K") into a
// TemperatureUnit. Name-based construction belongs at the boundary; the
// codec itself only handles the validated enum.
func UnitFromName(name string) (TemperatureUnit, error) {
	for u := Celsius; u <= Kelvin; u++ {
		if u.String() == name {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown temperature unit %q", name)
}

// ThermocoupleType is the probe type the meter is configured for.
// It applies to both channels at once.
type ThermocoupleType uint8

const (
	TypeK ThermocoupleType = iota + 1
	TypeJ
	TypeT
	TypeE
	TypeR
	TypeS
	TypeN
)

func (t ThermocoupleType) String() string {
	switch t {
	case TypeK:
		return "K"
	case TypeJ:
		return "J"
	case TypeT:
		return "T"
	case TypeE:
		return "E"
	case TypeR:
		return "R"
	case TypeS:
		return "S"
	case TypeN:
		return "N"
	}
	return fmt.Sprintf("ThermocoupleType(%d)", uint8(t))
}

// ThermocoupleFromWire converts a raw thermocouple code into a
// ThermocoupleType, rejecting values outside the defined range.
func ThermocoupleFromWire(v byte) (ThermocoupleType, error) {
	if v < byte(TypeK) || v > byte(TypeN) {
		return 0, &FormatError{Reason: fmt.Sprintf("unknown thermocouple type 0x%02x", v)}
	}
	return ThermocoupleType(v), nil
}

// ThermocoupleFromName converts a thermocouple letter ("K".."N") into a
// ThermocoupleType.
func ThermocoupleFromName(name string) (ThermocoupleType, error) {
	for t := TypeK; t <= TypeN; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown thermocouple type %q", name)
}

// Observation is one decoded measurement record. It is a value type:
// construct it, pass it around, never mutate it in place.
//
// A channel with no probe connected, or with an out-of-range reading,
// carries NaN. MeterTime is the elapsed-time counter the meter runs from
// power-on, independent of wall-clock time; it holds whole seconds only.
// SystemTime is stamped from the host clock at decode and is never
// carried on the wire.
type Observation struct {
	ChannelTemp      [2]float64
	Units            TemperatureUnit
	ThermocoupleType ThermocoupleType
	SystemTime       time.Time
	MeterTime        time.Duration
}

// SplitMeterTime decomposes a meter duration into whole hours, minutes
// and seconds, truncating sub-second precision.
func SplitMeterTime(d time.Duration) (hours, minutes, seconds int) {
	total := int(d / time.Second)
	return total / 3600, total / 60 % 60, total % 60
}

// Encode packs the observation into its 18-byte wire representation.
// The conversion is lossy: temperatures are rounded to tenths of the
// display unit and the meter time to whole seconds. Non-finite channel
// values are emitted as the invalid placeholder with the invalid flag.
func (o Observation) Encode() []byte {
	buf := make([]byte, MessageSize)
	buf[0], buf[1] = headerHi, headerLo

	for i, temp := range o.ChannelTemp {
		raw := int16(invalidPlaceholder)
		flag := byte(flagInvalid)
		if !math.IsNaN(temp) && !math.IsInf(temp, 0) {
			raw = int16(math.Round(temp * 10))
			flag = flagValid
		}
		binary.BigEndian.PutUint16(buf[5+2*i:7+2*i], uint16(raw))
		buf[11+i] = flag
	}

	buf[9] = byte(o.ThermocoupleType)
	buf[10] = byte(o.Units) | unitMarker

	hours, minutes, seconds := SplitMeterTime(o.MeterTime)
	buf[13] = byte(hours)
	buf[14] = byte(minutes)
	buf[15] = byte(seconds)

	buf[16], buf[17] = trailerHi, trailerLo
	return buf
}

// Decode unpacks an 18-byte wire message. It fails with a *FormatError
// when the header, trailer, or an enumerated field is invalid. The
// returned observation has SystemTime stamped with the current time.
func Decode(octets []byte) (Observation, error) {
	if len(octets) != MessageSize {
		return Observation{}, &FormatError{
			Reason: fmt.Sprintf("message length %d, want %d", len(octets), MessageSize),
		}
	}
	if octets[0] != headerHi || octets[1] != headerLo {
		return Observation{}, &FormatError{Reason: "bad header"}
	}
	if octets[16] != trailerHi || octets[17] != trailerLo {
		return Observation{}, &FormatError{Reason: "bad trailer"}
	}

	// The high bit of the unit byte is a fixed marker and the upper
	// nibble of the type byte is reserved; both are masked off.
	thermocouple, err := ThermocoupleFromWire(octets[9] & maskLowNibble)
	if err != nil {
		return Observation{}, err
	}
	units, err := UnitFromWire(octets[10] & maskLowNibble)
	if err != nil {
		return Observation{}, err
	}

	o := Observation{
		ChannelTemp:      [2]float64{math.NaN(), math.NaN()},
		Units:            units,
		ThermocoupleType: thermocouple,
		SystemTime:       time.Now().UTC(),
	}
	for i := range o.ChannelTemp {
		// Absence of the valid flag always yields NaN, whether or not
		// the invalid flag is present.
		if octets[11+i]&flagValid == 0 {
			continue
		}
		raw := int16(binary.BigEndian.Uint16(octets[5+2*i : 7+2*i]))
		o.ChannelTemp[i] = float64(raw) / 10.0
	}

	o.MeterTime = time.Duration(octets[13])*time.Hour +
		time.Duration(octets[14])*time.Minute +
		time.Duration(octets[15])*time.Second
	return o, nil
}
