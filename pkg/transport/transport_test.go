package transport

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIPv4(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "plain address",
			input:    "10.0.0.40",
			expected: true,
		},
		{
			name:     "localhost name",
			input:    "localhost",
			expected: false,
		},
		{
			name:     "visa resource",
			input:    "USB0::0x0699::INSTR",
			expected: false,
		},
		{
			name:     "empty",
			input:    "",
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsIPv4(tc.input))
		})
	}
}

// echoServer answers every received line with a canned response plus
// terminator, mimicking a line-oriented instrument.
func echoServer(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			if _, err := conn.Write([]byte(response)); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestTCPQueryRoundTrip(t *testing.T) {
	addr := echoServer(t, "MODEL-42,OK\r\n")

	tr := NewTCP(TCPConfig{Addr: addr, ReadTerm: "\r\n"})
	require.NoError(t, tr.Open())
	defer tr.Close()

	require.NoError(t, tr.Send("*IDN?"))
	got, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "MODEL-42,OK", got)
}

func TestTCPReceiveBinaryBlock(t *testing.T) {
	payload := "\x89PNG\x1a\xff0123456789"
	addr := echoServer(t, "#216"+payload+"\n")

	tr := NewTCP(TCPConfig{Addr: addr})
	require.NoError(t, tr.Open())
	defer tr.Close()

	require.NoError(t, tr.Send(":DISPlay:DATA? PNG, COLor"))
	got, err := tr.ReceiveBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte(payload), got)

	// The trailing newline must not leak into the next line read.
	require.NoError(t, tr.Send("*IDN?"))
	idn, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "#216"+payload, idn)
}

func TestTCPReceiveBinaryMalformed(t *testing.T) {
	addr := echoServer(t, "not a block\n")

	tr := NewTCP(TCPConfig{Addr: addr})
	require.NoError(t, tr.Open())
	defer tr.Close()

	require.NoError(t, tr.Send(":DISPlay:DATA? PNG, COLor"))
	_, err := tr.ReceiveBinary()
	assert.ErrorContains(t, err, "malformed block")
}

func TestTCPReceiveTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without answering.
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	}()

	tr := NewTCP(TCPConfig{Addr: ln.Addr().String(), Timeout: 50 * time.Millisecond})
	require.NoError(t, tr.Open())
	defer tr.Close()

	_, err = tr.Receive()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTCPNotOpen(t *testing.T) {
	tr := NewTCP(TCPConfig{Addr: "127.0.0.1:9999"})

	assert.ErrorIs(t, tr.Send("*IDN?"), ErrNotOpen)
	_, err := tr.Receive()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestTCPOpenInvalidAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "missing port",
			input: "10.0.0.40",
		},
		{
			name:  "empty",
			input: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTCP(TCPConfig{Addr: tc.input})
			assert.Error(t, tr.Open())
		})
	}
}

func TestTCPCloseIdempotent(t *testing.T) {
	tr := NewTCP(TCPConfig{Addr: "127.0.0.1:9999"})

	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}

func TestUDPQueryRoundTrip(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	go func() {
		buf := make([]byte, 1024)
		n, remote, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		reply := strings.ToUpper(string(buf[:n]))
		pc.WriteTo([]byte(reply), remote)
	}()

	tr := NewUDP(UDPConfig{Addr: pc.LocalAddr().String()})
	require.NoError(t, tr.Open())
	defer tr.Close()

	require.NoError(t, tr.Send("rv\r"))
	got, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "RV\r", got)
}

func TestUDPReceiveTimeout(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	tr := NewUDP(UDPConfig{Addr: pc.LocalAddr().String(), Timeout: 50 * time.Millisecond})
	require.NoError(t, tr.Open())
	defer tr.Close()

	_, err = tr.Receive()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSerialNotOpen(t *testing.T) {
	tr := NewSerial(SerialConfig{Port: "/dev/ttyUSB0"})

	assert.ErrorIs(t, tr.Send("TS"), ErrNotOpen)
	_, err := tr.Receive()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, tr.Close())
}

func TestSerialOpenEmptyPort(t *testing.T) {
	tr := NewSerial(SerialConfig{})
	assert.Error(t, tr.Open())
}

func TestPrologixSetup(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- strings.TrimSuffix(line, "\n")
			if strings.HasPrefix(line, "++read") {
				conn.Write([]byte("0\r\n"))
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	p := NewPrologix(PrologixConfig{Host: host, GPIBAddr: 3, Timeout: time.Second})
	// Point the inner socket at the test listener instead of :1234.
	p.tcp = NewTCP(TCPConfig{Addr: net.JoinHostPort(host, port), ReadTerm: "\r\n", Timeout: time.Second})
	require.NoError(t, p.Open())
	defer p.Close()

	setup := []string{"++mode 1", "++auto 0", "++read_tmo_ms 1000", "++eos 3", "++addr 3"}
	for _, want := range setup {
		assert.Equal(t, want, <-received)
	}

	require.NoError(t, p.Send("SWEEP?"))
	got, err := p.Receive()
	require.NoError(t, err)
	assert.Equal(t, "0", got)
	assert.Equal(t, "SWEEP?", <-received)
	assert.Equal(t, "++read eoi", <-received)
}
