package bridge

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, KindSystem, ClassifyEvent("SYSTEM"))
	assert.Equal(t, KindChat, ClassifyEvent("CHAT"))
	assert.Equal(t, KindDonation, ClassifyEvent("DONATION"))
	assert.Equal(t, KindSubscription, ClassifyEvent("SUBSCRIPTION"))
	assert.Equal(t, KindOther, ClassifyEvent("chat"))
	assert.Equal(t, KindOther, ClassifyEvent(""))
	assert.Equal(t, "OTHER", KindOther.String())
}

func normalize(t *testing.T, name, raw string) []string {
	t.Helper()
	n := NewNormalizer(log.NewTestLogger(t))
	var data json.RawMessage
	if raw != "" {
		data = json.RawMessage(raw)
	}
	envs := n.Normalize(name, data)
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		b, err := json.Marshal(env)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	return out
}

func TestNormalizer_NamedEvents(t *testing.T) {
	tests := []struct {
		name  string
		event string
		raw   string
		want  string
	}{
		{"object passes through", "CHAT", `{"msg":"hi"}`, `{"type":"socket_event","event":"CHAT","data":{"msg":"hi"}}`},
		{"json string decoded", "DONATION", `"{\"amount\":1000}"`, `{"type":"socket_event","event":"DONATION","data":{"amount":1000}}`},
		{"json array string decoded", "CHAT", `"[{\"msg\":\"a\"}]"`, `{"type":"socket_event","event":"CHAT","data":[{"msg":"a"}]}`},
		{"plain string kept", "SUBSCRIPTION", `"hello"`, `{"type":"socket_event","event":"SUBSCRIPTION","data":"hello"}`},
		{"number kept", "CHAT", `7`, `{"type":"socket_event","event":"CHAT","data":7}`},
		{"no argument", "DONATION", ``, `{"type":"socket_event","event":"DONATION","data":null}`},
		{"system without session", "SYSTEM", `{"type":"other"}`, `{"type":"socket_event","event":"SYSTEM","data":{"type":"other"}}`},
		{"system invalid json", "SYSTEM", `"{broken"`, `{"type":"socket_event","event":"SYSTEM","data":"{broken"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(t, tt.event, tt.raw)
			require.Len(t, got, 1)
			assert.JSONEq(t, tt.want, got[0])
		})
	}
}

func TestNormalizer_CatchAll(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"a":1}`, `{"a":1}`},
		{"json object string", `"{\"a\":1}"`, `{"a":1}`},
		{"plain string", `"not-json"`, `{"raw":"not-json"}`},
		{"json number string", `"5"`, `{"raw":"5"}`},
		{"json string string", `"\"hi\""`, `{"raw":"hi"}`},
		{"number", `42`, `{"raw":"42"}`},
		{"array", `[1, 2]`, `{"raw":"[1,2]"}`},
		{"bool", `true`, `{"raw":"true"}`},
		{"null", `null`, `{"raw":"null"}`},
		{"no argument", ``, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(t, "custom", tt.raw)
			require.Len(t, got, 1)
			assert.JSONEq(t, `{"type":"socket_event","event":"custom","data":`+tt.want+`}`, got[0])
		})
	}
}

func TestNormalizer_SystemSessionKey(t *testing.T) {
	got := normalize(t, "SYSTEM", `"{\"type\":\"connected\",\"data\":{\"sessionKey\":\"K1\"}}"`)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"type":"session_key","session_key":"K1"}`, got[0])
	assert.JSONEq(t, `{"type":"socket_event","event":"SYSTEM","data":{"type":"connected","data":{"sessionKey":"K1"}}}`, got[1])

	got = normalize(t, "SYSTEM", `{"type":"connected","data":{"sessionKey":"K2"}}`)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"type":"session_key","session_key":"K2"}`, got[0])
}

func TestNormalizer_SystemWithoutUsableSessionKey(t *testing.T) {
	for _, raw := range []string{
		`{"type":"connected","data":{"sessionKey":""}}`,
		`{"type":"connected","data":{}}`,
		`{"type":"connected"}`,
		`{"type":"connected","data":"x"}`,
		`{"type":"disconnected","data":{"sessionKey":"K"}}`,
		`"plain"`,
	} {
		got := normalize(t, "SYSTEM", raw)
		assert.Len(t, got, 1, raw)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("가", 150)
	assert.Equal(t, strings.Repeat("가", 100), preview(json.RawMessage(`"`+long+`"`)))
	assert.Equal(t, `{"a":1}`, preview(json.RawMessage(`{"a":1}`)))
}
