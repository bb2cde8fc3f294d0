// Package link is the network-layer health collaborator. The publish engine
// only ever asks two things: is the link up, and block until it is again.
package link

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MCMike0399/water-monitor-aws/log2"
	"github.com/cenkalti/backoff/v4"
	"github.com/juju/errors"
)

const DefaultRetry = 5 * time.Second

type Link interface {
	IsLinked() bool
	// Reconnect blocks, retrying with a fixed backoff, until the link is up.
	// Returns an error only on unrecoverable hardware absence.
	Reconnect() error
}

// Netdev watches a Linux network interface through sysfs operstate.
// Association/auth is managed outside (wpa_supplicant or similar), here we
// only wait for the interface to come back.
type Netdev struct {
	log   *log2.Log
	iface string
	retry time.Duration
	root  string // sysfs mount, overridable in tests
}

func NewNetdev(log *log2.Log, iface string, retry time.Duration) *Netdev {
	if retry == 0 {
		retry = DefaultRetry
	}
	return &Netdev{
		log:   log,
		iface: iface,
		retry: retry,
		root:  "/sys/class/net",
	}
}

func (n *Netdev) IsLinked() bool {
	state, err := n.operstate()
	return err == nil && state == "up"
}

func (n *Netdev) Reconnect() error {
	n.log.Infof("link reconnect iface=%s", n.iface)
	op := func() error {
		if _, err := os.Stat(filepath.Join(n.root, n.iface)); err != nil {
			// missing hardware will not come back by waiting
			return backoff.Permanent(errors.NotFoundf("link netdev=%s", n.iface))
		}
		if !n.IsLinked() {
			return errors.Errorf("link down netdev=%s", n.iface)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.NewConstantBackOff(n.retry)); err != nil {
		return errors.Annotate(err, "link reconnect")
	}
	n.log.Infof("link up iface=%s", n.iface)
	return nil
}

func (n *Netdev) operstate() (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(n.root, n.iface, "operstate"))
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(b)), nil
}

// Mock link for tests.
type Mock struct {
	mu         sync.Mutex
	up         bool
	Err        error // returned by Reconnect when set
	Reconnects int
}

func NewMock(up bool) *Mock { return &Mock{up: up} }

func (m *Mock) SetLinked(up bool) {
	m.mu.Lock()
	m.up = up
	m.mu.Unlock()
}

func (m *Mock) IsLinked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

func (m *Mock) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconnects++
	if m.Err != nil {
		return m.Err
	}
	m.up = true
	return nil
}
