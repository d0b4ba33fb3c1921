package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func query(t *testing.T, tr *Transport, cmd string) string {
	t.Helper()
	require.NoError(t, tr.Send(cmd))
	resp, err := tr.Receive()
	require.NoError(t, err)
	return resp
}

func TestCannedResponses(t *testing.T) {
	tr := NewTransport(Profile{
		Responses: map[string]string{
			"*IDN?": "ANDO dummy",
			"SMPL?": " 501",
		},
		Rules: []Rule{
			{Contains: "LDATA", Response: "  20,-210.00,-75.28"},
		},
	})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "exact match",
			input:    "*IDN?",
			expected: "ANDO dummy",
		},
		{
			name:     "exact match with padding preserved",
			input:    "SMPL?",
			expected: " 501",
		},
		{
			name:     "substring rule",
			input:    "LDATA R1-R20",
			expected: "  20,-210.00,-75.28",
		},
		{
			name:     "unknown command falls back",
			input:    "NOPE?",
			expected: FallbackResponse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, query(t, tr, tc.input))
		})
	}
}

func TestFallbackIsDeterministicAndCounted(t *testing.T) {
	tr := NewTransport(Profile{})

	first := query(t, tr, "ANYTHING?")
	second := query(t, tr, "ANYTHING?")
	assert.Equal(t, first, second)
	assert.Equal(t, FallbackResponse, first)
	assert.Equal(t, 2, tr.FallbackCount())
}

func TestJournalRecordsCommands(t *testing.T) {
	tr := NewTransport(Profile{Responses: map[string]string{"TS": "OK"}})

	query(t, tr, "TS")
	require.NoError(t, tr.Send("PA10.5"))

	assert.Equal(t, []string{"TS", "PA10.5"}, tr.Journal())
}

func TestBareWriteDoesNotShadowNextQuery(t *testing.T) {
	tr := NewTransport(Profile{Responses: map[string]string{"PA?": "1.5"}})

	require.NoError(t, tr.Send("PA10.5"))
	assert.Equal(t, "1.5", query(t, tr, "PA?"))
	assert.Zero(t, tr.FallbackCount())
}

func TestOpenAndCloseAlwaysSucceed(t *testing.T) {
	tr := NewTransport(Profile{})

	assert.NoError(t, tr.Open())
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}

func TestReceiveWithoutSendFallsBack(t *testing.T) {
	tr := NewTransport(Profile{})

	resp, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse, resp)
	assert.Equal(t, 1, tr.FallbackCount())
}

func TestMailboxHandshake(t *testing.T) {
	// The write/ACK/ENQ/data exchange of the gauge controllers.
	tr := NewTransport(Profile{
		Responses: map[string]string{
			"PR1": "5,+0.0000E+00",
		},
		Ack: "\x06",
		Enq: "\x05",
	})

	assert.Equal(t, "\x06", query(t, tr, "PR1"))
	assert.Equal(t, "5,+0.0000E+00", query(t, tr, "\x05"))

	// An unknown command still handshakes and delivers the fallback.
	assert.Equal(t, "\x06", query(t, tr, "XYZ"))
	assert.Equal(t, FallbackResponse, query(t, tr, "\x05"))
	assert.Equal(t, 1, tr.FallbackCount())
}

func TestCustomFallback(t *testing.T) {
	tr := NewTransport(Profile{Fallback: "%"})

	assert.Equal(t, "%", query(t, tr, "ZZ"))
}
