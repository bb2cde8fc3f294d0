package sensor

import (
	"fmt"
	"math"
)

// RawMax is full scale of the 12-bit ADC.
const RawMax = 4095

type Channel uint8

const (
	Turbidity Channel = iota
	PH
	Conductivity
	ChannelCount
)

func (c Channel) String() string {
	switch c {
	case Turbidity:
		return "turbidity"
	case PH:
		return "ph"
	case Conductivity:
		return "conductivity"
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

func ParseChannel(s string) (Channel, error) {
	for c := Turbidity; c < ChannelCount; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return ChannelCount, fmt.Errorf("unknown sensor channel=%s", s)
}

// Calibration maps an averaged raw ADC value to engineering units.
// value = scale*norm + offset where norm is raw/4095, flipped when Invert.
type Calibration struct {
	Pin    uint8
	Scale  float64
	Offset float64
	Invert bool
}

func (c Calibration) Convert(raw uint16) float64 {
	norm := float64(raw) / RawMax
	if c.Invert {
		norm = 1 - norm
	}
	return Round2(c.Scale*norm + c.Offset)
}

// Higher raw reading means clearer water, so turbidity scale is inverted.
func DefaultCalibration(ch Channel) Calibration {
	switch ch {
	case Turbidity:
		return Calibration{Pin: 0, Scale: 1000, Invert: true}
	case PH:
		return Calibration{Pin: 1, Scale: 14}
	case Conductivity:
		return Calibration{Pin: 2, Scale: 1500}
	}
	return Calibration{}
}

// Round2 keeps payload size stable and avoids float formatting jitter.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
