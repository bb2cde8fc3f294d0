package sensor

import (
	"fmt"
	"testing"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArray(t testing.TB, adc ADC) *Array {
	a := NewArray(log2.NewTest(t, log2.LError), adc)
	a.SetTiming(DefaultSamples, 0) // no settle delay in tests
	return a
}

func TestConvertTurbidityMonotonic(t *testing.T) {
	t.Parallel()
	cal := DefaultCalibration(Turbidity)
	prev := cal.Convert(0)
	assert.Equal(t, 1000.0, prev)
	for raw := uint16(1); ; raw++ {
		v := cal.Convert(raw)
		assert.True(t, v <= prev, "turbidity must not increase raw=%d v=%v prev=%v", raw, v, prev)
		prev = v
		if raw == RawMax {
			break
		}
	}
	assert.Equal(t, 0.0, cal.Convert(RawMax))
}

func TestConvertEndpoints(t *testing.T) {
	t.Parallel()
	ph := DefaultCalibration(PH)
	assert.Equal(t, 0.0, ph.Convert(0))
	assert.InDelta(t, 14.0, ph.Convert(RawMax), 0.001)
	cond := DefaultCalibration(Conductivity)
	assert.Equal(t, 0.0, cond.Convert(0))
	assert.InDelta(t, 1500.0, cond.Convert(RawMax), 0.001)
}

func TestRound2Idempotent(t *testing.T) {
	t.Parallel()
	for _, x := range []float64{0, 0.004, 0.005, 1.0 / 3, 7.0017, 499.877, 750.183, 1499.9999, -3.456} {
		r := Round2(x)
		assert.Equal(t, r, Round2(r), "x=%v", x)
	}
}

func TestSampleAverageTruncates(t *testing.T) {
	t.Parallel()
	adc := NewMockADC()
	// sum=1005, 10 samples: integer truncation gives 100, not 100.5
	adc.Script(0, 100, 100, 100, 100, 100, 100, 100, 100, 100, 105)
	a := testArray(t, adc)
	raw, err := a.Sample(Turbidity)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), raw)
	assert.Equal(t, 10, adc.Reads)
}

func TestSampleDeterministic(t *testing.T) {
	t.Parallel()
	adc := NewMockADC()
	adc.Script(1, 2048)
	a := testArray(t, adc)
	raw, err := a.Sample(PH)
	require.NoError(t, err)
	assert.Equal(t, uint16(2048), raw)
}

func TestReadBatchMidscale(t *testing.T) {
	t.Parallel()
	adc := NewMockADC()
	adc.Script(0, 2048)
	adc.Script(1, 2048)
	adc.Script(2, 2048)
	a := testArray(t, adc)
	b, err := a.ReadBatch()
	require.NoError(t, err)
	assert.InDelta(t, 500.0, b[Turbidity].Value, 0.5)
	assert.InDelta(t, 7.0, b[PH].Value, 0.02)
	assert.InDelta(t, 750.0, b[Conductivity].Value, 0.5)
	for ch := Turbidity; ch < ChannelCount; ch++ {
		assert.Equal(t, ch, b[ch].Channel)
		assert.Equal(t, uint16(2048), b[ch].Raw)
	}
}

func TestReadBatchAbortsOnError(t *testing.T) {
	t.Parallel()
	adc := NewMockADC()
	adc.Err = fmt.Errorf("spi gone")
	a := testArray(t, adc)
	_, err := a.ReadBatch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spi gone")
}

func TestParseChannel(t *testing.T) {
	t.Parallel()
	for ch := Turbidity; ch < ChannelCount; ch++ {
		parsed, err := ParseChannel(ch.String())
		require.NoError(t, err)
		assert.Equal(t, ch, parsed)
	}
	_, err := ParseChannel("salinity")
	assert.Error(t, err)
}
