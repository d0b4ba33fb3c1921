package transport

import (
	"fmt"
	"net"
	"time"
)

// prologixPort is the fixed TCP port of the Prologix GPIB-Ethernet
// adapter.
const prologixPort = "1234"

// PrologixConfig describes a GPIB instrument behind a Prologix
// GPIB-Ethernet adapter.
type PrologixConfig struct {
	// Host is the adapter address (the adapter listens on port 1234).
	Host string
	// GPIBAddr is the instrument address on the bus, 1 to 30.
	GPIBAddr int
	// Timeout bounds a single Receive and is also programmed into the
	// adapter's read timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Prologix is a Transport that drives a GPIB instrument through a
// Prologix GPIB-Ethernet adapter. The adapter is put into controller
// mode with auto-read off, so every Receive explicitly asks the adapter
// to read from the bus until EOI.
type Prologix struct {
	cfg PrologixConfig
	tcp *TCP
}

// NewPrologix creates an unopened Prologix transport.
func NewPrologix(cfg PrologixConfig) *Prologix {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Prologix{
		cfg: cfg,
		tcp: NewTCP(TCPConfig{
			Addr:      net.JoinHostPort(cfg.Host, prologixPort),
			WriteTerm: "\n",
			ReadTerm:  "\r\n",
			Timeout:   cfg.Timeout,
		}),
	}
}

func (p *Prologix) Open() error {
	if err := p.tcp.Open(); err != nil {
		return err
	}
	setup := []string{
		"++mode 1",
		"++auto 0",
		fmt.Sprintf("++read_tmo_ms %d", p.cfg.Timeout.Milliseconds()),
		"++eos 3",
		fmt.Sprintf("++addr %d", p.cfg.GPIBAddr),
	}
	for _, cmd := range setup {
		if err := p.tcp.Send(cmd); err != nil {
			p.tcp.Close()
			return fmt.Errorf("configuring adapter: %v", err)
		}
	}
	return nil
}

func (p *Prologix) Send(cmd string) error {
	return p.tcp.Send(cmd)
}

func (p *Prologix) Receive() (string, error) {
	if err := p.tcp.Send("++read eoi"); err != nil {
		return "", err
	}
	return p.tcp.Receive()
}

func (p *Prologix) Close() error {
	return p.tcp.Close()
}
