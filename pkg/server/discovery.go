package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// discoveryMagic marks a datagram as a discovery request.
const discoveryMagic = "labdevices discovery"

// DiscoveryResponder answers LAN discovery datagrams with the HTTP
// port, so clients find the server without configuration.
type DiscoveryResponder struct {
	sock     *net.UDPConn
	response string
	logger   log.FieldLogger
}

// NewDiscoveryResponder binds the discovery socket. A discoveryPort of
// 0 binds an ephemeral port; httpPort is the port announced in
// responses.
func NewDiscoveryResponder(addr string, discoveryPort, httpPort int, logger log.FieldLogger) (*DiscoveryResponder, error) {
	bind, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(discoveryPort)))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve discovery address: %v", err)
	}

	sock, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("cannot bind discovery socket: %v", err)
	}

	response, _ := json.Marshal(map[string]int{"port": httpPort})

	return &DiscoveryResponder{
		sock:     sock,
		response: string(response),
		logger:   logger,
	}, nil
}

// Addr returns the bound discovery address.
func (d *DiscoveryResponder) Addr() net.Addr {
	return d.sock.LocalAddr()
}

// Run answers discovery datagrams until the context is cancelled.
func (d *DiscoveryResponder) Run(ctx context.Context) error {
	defer d.sock.Close()

	buf := make([]byte, 1024)
	d.logger.Debugf("Discovery responder started on %s", d.Addr())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			// A short deadline keeps the loop checking for cancellation.
			d.sock.SetReadDeadline(time.Now().Add(1 * time.Second))

			n, addr, err := d.sock.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				d.logger.Debugf("Error reading from socket: %v", err)
				continue
			}

			data := string(buf[:n])
			d.logger.Debugf("Received %q from %s", data, addr)

			if strings.Contains(data, discoveryMagic) {
				if _, err := d.sock.WriteToUDP([]byte(d.response), addr); err != nil {
					d.logger.Errorf("Error writing to socket: %v", err)
				}
			}
		}
	}
}
