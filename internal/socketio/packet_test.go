package socketio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		typ    byte
		ns     string
		ack    int
		hasAck bool
		data   string
	}{
		{"connect", "0", sioConnect, "/", 0, false, ""},
		{"connect v4", `0{"sid":"x"}`, sioConnect, "/", 0, false, `{"sid":"x"}`},
		{"event", `2["CHAT",{"a":1}]`, sioEvent, "/", 0, false, `["CHAT",{"a":1}]`},
		{"event with ack", `212["SYSTEM"]`, sioEvent, "/", 12, true, `["SYSTEM"]`},
		{"namespaced", `2/chat,["X"]`, sioEvent, "/chat", 0, false, `["X"]`},
		{"namespaced ack", `2/chat,7["X"]`, sioEvent, "/chat", 7, true, `["X"]`},
		{"namespace only", `1/chat`, sioDisconnect, "/chat", 0, false, ""},
		{"error", `4"not authorized"`, sioError, "/", 0, false, `"not authorized"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePacket([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.ns, p.Namespace)
			assert.Equal(t, tt.hasAck, p.HasAck)
			assert.Equal(t, tt.ack, p.AckID)
			assert.Equal(t, tt.data, string(p.Data))
		})
	}
}

func TestDecodePacket_Errors(t *testing.T) {
	for _, in := range []string{"", "9", `51-["x",{"_placeholder":true}]`, `2["unterminated`} {
		_, err := decodePacket([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestPacketEncode(t *testing.T) {
	p, err := eventPacket("CHAT", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `42["CHAT",{"a":1}]`, string(p.encode()))

	ack := packet{Type: sioAck, AckID: 3, HasAck: true, Data: json.RawMessage("[]")}
	assert.Equal(t, `433[]`, string(ack.encode()))

	ns := packet{Type: sioConnect, Namespace: "/admin"}
	assert.Equal(t, `40/admin,`, string(ns.encode()))
}

func TestEventArgs(t *testing.T) {
	name, args, err := eventArgs(json.RawMessage(`["DONATION","{\"amount\":5}",2]`))
	require.NoError(t, err)
	assert.Equal(t, "DONATION", name)
	require.Len(t, args, 2)
	assert.Equal(t, `"{\"amount\":5}"`, string(args[0]))

	name, args, err = eventArgs(json.RawMessage(`["PING"]`))
	require.NoError(t, err)
	assert.Equal(t, "PING", name)
	assert.Empty(t, args)

	_, _, err = eventArgs(json.RawMessage(`[]`))
	assert.Error(t, err)
	_, _, err = eventArgs(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad token", errorMessage(json.RawMessage(`"bad token"`)))
	assert.Equal(t, "nope", errorMessage(json.RawMessage(`{"message":"nope"}`)))
	assert.Equal(t, "connection refused by server", errorMessage(nil))
}
