package agent

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/MCMike0399/water-monitor-aws/helpers"
	"github.com/MCMike0399/water-monitor-aws/internal/sensor"
	"github.com/MCMike0399/water-monitor-aws/internal/tele"
	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

const (
	DefaultPublishInterval   = 1000 * time.Millisecond
	DefaultReconnectInterval = 60000 * time.Millisecond
	DefaultServerPort        = 8000
	DefaultServerPath        = "/water-monitor/publish"
	DefaultLinkIface         = "wlan0"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Server struct {
		Host          string `hcl:"host"`
		Port          int    `hcl:"port"`
		Path          string `hcl:"path"`
		KeepAlive     bool   `hcl:"keep_alive"`
		DialTimeoutMs int    `hcl:"dial_timeout_ms"`
		SendTimeoutMs int    `hcl:"send_timeout_ms"`
	}

	Publish struct {
		IntervalMs          int `hcl:"interval_ms"`
		ReconnectIntervalMs int `hcl:"reconnect_interval_ms"`
		TraceEvery          int `hcl:"trace_every"`
	}

	Sensor struct {
		Mock     bool            `hcl:"mock"`
		Spi      string          `hcl:"spi"`
		Samples  int             `hcl:"samples"`
		SettleMs int             `hcl:"settle_ms"`
		Channels []ChannelConfig `hcl:"channel"`
	}

	Link struct {
		Iface   string `hcl:"iface"`
		RetryMs int    `hcl:"retry_ms"`
	}

	Tele tele.Config

	_copy_guard sync.Mutex //nolint:unused
}

type ChannelConfig struct {
	Name   string  `hcl:"name,key"`
	Pin    int     `hcl:"pin"`
	Scale  float64 `hcl:"scale"`
	Offset float64 `hcl:"offset"`
	Invert bool    `hcl:"invert"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) PublishInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Publish.IntervalMs, DefaultPublishInterval)
}

func (c *Config) ReconnectInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Publish.ReconnectIntervalMs, DefaultReconnectInterval)
}

// Calibration resolves one channel's override over defaults. Bad pin or
// unknown name is a configuration-time defect, reported here, not at runtime.
func (c *Config) Calibration(ch sensor.Channel) (sensor.Calibration, error) {
	cal := sensor.DefaultCalibration(ch)
	for i := range c.Sensor.Channels {
		cc := &c.Sensor.Channels[i]
		parsed, err := sensor.ParseChannel(cc.Name)
		if err != nil {
			return cal, errors.Annotate(err, "config sensor.channel")
		}
		if parsed != ch {
			continue
		}
		if cc.Pin < 0 || cc.Pin > 7 {
			return cal, errors.NotValidf("config sensor.channel %s pin=%d", cc.Name, cc.Pin)
		}
		cal.Pin = uint8(cc.Pin)
		if cc.Scale != 0 {
			cal.Scale = cc.Scale
		}
		cal.Offset = cc.Offset
		cal.Invert = cc.Invert
	}
	return cal, nil
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
			return
		}
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
