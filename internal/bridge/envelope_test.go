package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_MarshalShapes(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{"token set", TokenSet(), `{"type":"token_set","status":"success"}`},
		{"connected", ConnectionStatus(true), `{"type":"connection_status","status":"connected"}`},
		{"disconnected", ConnectionStatus(false), `{"type":"connection_status","status":"disconnected"}`},
		{"transport up", SocketIOStatus(true), `{"type":"socket_io_status","status":"connected"}`},
		{"transport down", SocketIOStatus(false), `{"type":"socket_io_status","status":"disconnected"}`},
		{"error", ErrorEnvelope("boom"), `{"type":"error","message":"boom"}`},
		{"session key", SessionKey("K1"), `{"type":"session_key","session_key":"K1"}`},
		{"event", SocketEvent("CHAT", json.RawMessage(`{"a": 1}`)), `{"type":"socket_event","event":"CHAT","data":{"a":1}}`},
		{"event without data", SocketEvent("CHAT", nil), `{"type":"socket_event","event":"CHAT","data":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestEnvelope_UnknownType(t *testing.T) {
	_, err := json.Marshal(Envelope{Type: "bogus"})
	assert.Error(t, err)
}
