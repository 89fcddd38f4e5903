package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSecret_Masking(t *testing.T) {
	assert.Equal(t, "", Secret("").String())
	assert.Equal(t, "****", Secret("abc").String())
	assert.Equal(t, "se****et", Secret("secret").String())
	assert.Equal(t, "secret", Secret("secret").Value())

	data, err := json.Marshal(RedisConfig{Password: "hunter22"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hu****22"`)
}

func TestSecret_YAMLRoundTrip(t *testing.T) {
	var cfg RedisConfig
	require.NoError(t, yaml.Unmarshal([]byte("password: topsecret\n"), &cfg))
	assert.Equal(t, "topsecret", cfg.Password.Value())

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "to****et")
}
