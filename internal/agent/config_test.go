package agent

import (
	"testing"
	"time"

	"github.com/MCMike0399/water-monitor-aws/internal/sensor"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(t testing.TB, c *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, DefaultPublishInterval, c.PublishInterval())
			assert.Equal(t, DefaultReconnectInterval, c.ReconnectInterval())
		}, ""},

		{"server",
			`server { host = "51.92.64.38" port = 8000 path = "/water-monitor/publish" keep_alive = true send_timeout_ms = 1000 }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "51.92.64.38", c.Server.Host)
				assert.Equal(t, 8000, c.Server.Port)
				assert.True(t, c.Server.KeepAlive)
				assert.Equal(t, 1000, c.Server.SendTimeoutMs)
			},
			"",
		},

		{"intervals",
			`publish { interval_ms = 2000 reconnect_interval_ms = 30000 }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 2*time.Second, c.PublishInterval())
				assert.Equal(t, 30*time.Second, c.ReconnectInterval())
			},
			"",
		},

		{"channel-override", `
sensor {
	channel "ph" { pin = 5 scale = 14 }
	channel "conductivity" { pin = 6 scale = 2000 offset = 10 }
}`,
			func(t testing.TB, c *Config) {
				ph, err := c.Calibration(sensor.PH)
				require.NoError(t, err)
				assert.Equal(t, uint8(5), ph.Pin)
				cond, err := c.Calibration(sensor.Conductivity)
				require.NoError(t, err)
				assert.Equal(t, uint8(6), cond.Pin)
				assert.Equal(t, 2000.0, cond.Scale)
				assert.Equal(t, 10.0, cond.Offset)
				// untouched channel keeps defaults
				turb, err := c.Calibration(sensor.Turbidity)
				require.NoError(t, err)
				assert.Equal(t, sensor.DefaultCalibration(sensor.Turbidity), turb)
			},
			"",
		},

		{"channel-bad-name",
			`sensor { channel "salinity" { pin = 2 } }`,
			func(t testing.TB, c *Config) {
				_, err := c.Calibration(sensor.Conductivity)
				require.Error(t, err)
			},
			"",
		},

		{"channel-bad-pin",
			`sensor { channel "ph" { pin = 12 } }`,
			func(t testing.TB, c *Config) {
				_, err := c.Calibration(sensor.PH)
				require.Error(t, err)
			},
			"",
		},

		{"tele",
			`tele { enable = true device_id = "wm1" mqtt_broker = "tcp://broker:1883" }`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Tele.Enabled)
				assert.Equal(t, "wm1", c.Tele.DeviceId)
				assert.Equal(t, "tcp://broker:1883", c.Tele.MqttBroker)
			},
			"",
		},

		{"include-missing-required",
			`include "nothere" {}`,
			nil,
			"config required name=nothere",
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			log := log2.NewTest(t, log2.LError)
			fs := NewMockFullReader(map[string]string{"test.hcl": c.input})
			cfg, err := ReadConfig(log, fs, "test.hcl")
			if c.expectErr == "" {
				require.NoError(t, err)
				c.check(t, cfg)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
			}
		})
	}
}

func TestReadConfigInclude(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LError)
	fs := NewMockFullReader(map[string]string{
		"base.hcl":  `include "site.hcl" {} server { host = "example.org" }`,
		"site.hcl":  `publish { interval_ms = 5000 }`,
		"extra.hcl": `include "missing.hcl" { optional = true }`,
	})
	cfg, err := ReadConfig(log, fs, "base.hcl", "extra.hcl")
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.PublishInterval())
}
