package sensor

import (
	"time"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/juju/errors"
)

const (
	DefaultSamples = 10
	DefaultSettle  = 2 * time.Millisecond
)

// ADC performs a single conversion on an analog input.
type ADC interface {
	Read(pin uint8) (uint16, error)
}

type Reading struct {
	Channel Channel
	Raw     uint16
	Value   float64
}

// Batch is the three-channel reading set produced in one tick.
// No partial batches: a read error aborts the whole tick.
type Batch [ChannelCount]Reading

// Array owns the sampling and conversion pipeline for the fixed three
// channels. Sampling latency is samples*settle per channel, must stay well
// below the publish interval.
type Array struct {
	log     *log2.Log
	adc     ADC
	cal     [ChannelCount]Calibration
	samples int
	settle  time.Duration
}

func NewArray(log *log2.Log, adc ADC) *Array {
	a := &Array{
		log:     log,
		adc:     adc,
		samples: DefaultSamples,
		settle:  DefaultSettle,
	}
	for ch := Turbidity; ch < ChannelCount; ch++ {
		a.cal[ch] = DefaultCalibration(ch)
	}
	return a
}

func (a *Array) SetCalibration(ch Channel, c Calibration) { a.cal[ch] = c }
func (a *Array) Calibration(ch Channel) Calibration       { return a.cal[ch] }

// SetTiming overrides sample count and settle delay. Zero keeps default.
func (a *Array) SetTiming(samples int, settle time.Duration) {
	if samples > 0 {
		a.samples = samples
	}
	a.settle = settle
}

// Sample takes a.samples readings separated by the settle delay and returns
// the truncating integer average. Suppresses ADC and environment noise.
func (a *Array) Sample(ch Channel) (uint16, error) {
	pin := a.cal[ch].Pin
	var sum uint32
	for i := 0; i < a.samples; i++ {
		if i > 0 && a.settle > 0 {
			time.Sleep(a.settle)
		}
		raw, err := a.adc.Read(pin)
		if err != nil {
			return 0, errors.Annotatef(err, "sample channel=%s pin=%d", ch.String(), pin)
		}
		sum += uint32(raw)
	}
	return uint16(sum / uint32(a.samples)), nil
}

func (a *Array) Convert(ch Channel, raw uint16) float64 {
	return a.cal[ch].Convert(raw)
}

// ReadBatch samples and converts all channels in enum order.
func (a *Array) ReadBatch() (Batch, error) {
	var b Batch
	for ch := Turbidity; ch < ChannelCount; ch++ {
		raw, err := a.Sample(ch)
		if err != nil {
			return Batch{}, err
		}
		b[ch] = Reading{Channel: ch, Raw: raw, Value: a.Convert(ch, raw)}
		a.log.Debugf("sensor %s raw=%d value=%.2f", ch.String(), raw, b[ch].Value)
	}
	return b, nil
}
