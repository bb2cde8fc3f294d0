package sensor

// MCP3208 is an 8-channel 12-bit SPI ADC, full scale 0..4095 matches the
// calibration model directly.

import (
	"github.com/juju/errors"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

type MCP3208 struct {
	port spi.PortCloser
	conn spi.Conn
}

func NewMCP3208(spiPath string) (*MCP3208, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph host init")
	}
	port, err := spireg.Open(spiPath)
	if err != nil {
		return nil, errors.Annotatef(err, "spi open %s", spiPath)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotatef(err, "spi connect %s", spiPath)
	}
	return &MCP3208{port: port, conn: conn}, nil
}

func (m *MCP3208) Read(pin uint8) (uint16, error) {
	if pin > 7 {
		return 0, errors.Errorf("mcp3208 pin=%d out of range", pin)
	}
	// start bit, single-ended mode, 3-bit channel, then 12 clocked-out bits
	tx := []byte{0x06 | pin>>2, pin << 6, 0x00}
	rx := make([]byte, 3)
	if err := m.conn.Tx(tx, rx); err != nil {
		return 0, errors.Annotatef(err, "mcp3208 read pin=%d", pin)
	}
	return uint16(rx[1]&0x0f)<<8 | uint16(rx[2]), nil
}

func (m *MCP3208) Close() error { return m.port.Close() }
