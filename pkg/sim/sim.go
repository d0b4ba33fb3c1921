// Package sim provides the simulated transport that backs every dummy
// device. A dummy is the real driver wired to a sim.Transport instead of
// a socket or serial port: the driver's command formatting and response
// parsing run for real, against canned responses, with no hardware and
// no I/O.
//
// Dummies built on this transport are not stateful. Setting a value and
// reading it back returns the canned response, not the value that was
// set, unless a family's profile explicitly models the exchange. Tests
// must not assume read-after-write consistency on a dummy.
package sim

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// FallbackResponse answers commands no profile entry matches. It is the
// string form of the canonical placeholder, chosen so that integer,
// float and string parses of it all succeed.
const FallbackResponse = device.PlaceholderString

// Rule answers any command containing a substring. Rules cover
// parameterized commands ("DLAY?2", "CHANnel1:DATA?") that an exact
// table cannot enumerate.
type Rule struct {
	Contains string
	Response string
}

// Profile is the canned behavior of one instrument family: what the
// device would answer on its wire, keyed by command.
type Profile struct {
	// Responses answers exact commands.
	Responses map[string]string
	// Rules are tried in order when no exact entry matches.
	Rules []Rule
	// Ack and Enq switch the profile to a mailbox handshake: a command
	// found in Responses is answered with Ack and its data is held until
	// the Enq command fetches it. Used by gauge controllers that speak
	// write, ACK, ENQ, data.
	Ack string
	Enq string
	// Fallback overrides FallbackResponse when non-empty.
	Fallback string
}

func (p Profile) fallback() string {
	if p.Fallback != "" {
		return p.Fallback
	}
	return FallbackResponse
}

// Transport replays a Profile. Open and Close always succeed, Receive
// never times out and never fails, and every sent command is journaled
// so tests can assert what a driver put on the wire.
type Transport struct {
	profile    Profile
	journal    []string
	pending    string
	hasPending bool
	held       string
	holding    bool
	fallbacks  int
}

var (
	_ transport.Transport      = (*Transport)(nil)
	_ transport.BinaryReceiver = (*Transport)(nil)
)

// NewTransport creates a transport replaying the given profile.
func NewTransport(profile Profile) *Transport {
	return &Transport{profile: profile}
}

func (t *Transport) Open() error { return nil }

func (t *Transport) Close() error { return nil }

// Send journals the command and makes it the one the next Receive
// answers. Sending again before reading drops the unread answer, like
// an instrument that does not reply to bare writes.
func (t *Transport) Send(cmd string) error {
	t.journal = append(t.journal, cmd)
	t.pending = cmd
	t.hasPending = true
	return nil
}

// Receive answers the last sent command. Receiving with nothing sent
// answers the fallback, since a dummy never blocks and never times out.
func (t *Transport) Receive() (string, error) {
	if !t.hasPending {
		t.fallback("<empty read>")
		return t.profile.fallback(), nil
	}
	t.hasPending = false
	return t.respond(t.pending), nil
}

// ReceiveBinary answers like Receive but as raw bytes, standing in for
// the block reads real transports do for screenshots and waveforms.
// Profiles store binary payloads as string values.
func (t *Transport) ReceiveBinary() ([]byte, error) {
	resp, err := t.Receive()
	if err != nil {
		return nil, err
	}
	return []byte(resp), nil
}

func (t *Transport) respond(cmd string) string {
	p := t.profile
	if p.Ack != "" && cmd == p.Enq {
		if t.holding {
			t.holding = false
			return t.held
		}
		t.fallback(cmd)
		return p.fallback()
	}
	if resp, ok := p.Responses[cmd]; ok {
		if p.Ack != "" {
			t.held = resp
			t.holding = true
			return p.Ack
		}
		return resp
	}
	for _, rule := range p.Rules {
		if rule.Contains != "" && strings.Contains(cmd, rule.Contains) {
			return rule.Response
		}
	}
	if p.Ack != "" {
		// Unknown writes still handshake; the fallback is held for Enq.
		t.fallback(cmd)
		t.held = p.fallback()
		t.holding = true
		return p.Ack
	}
	t.fallback(cmd)
	return p.fallback()
}

func (t *Transport) fallback(cmd string) {
	t.fallbacks++
	log.Warnf("sim: no canned response for %q, answering %q", cmd, t.profile.fallback())
}

// Journal returns every command sent so far, in order.
func (t *Transport) Journal() []string {
	out := make([]string, len(t.journal))
	copy(out, t.journal)
	return out
}

// FallbackCount reports how often the placeholder fallback answered, so
// tests and the check command can observe profile gaps.
func (t *Transport) FallbackCount() int {
	return t.fallbacks
}
