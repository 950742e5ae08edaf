package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var parsed Duration
	require.NoError(t, json.Unmarshal([]byte(`"5m"`), &parsed))
	assert.Equal(t, 5*time.Minute, parsed.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &parsed))
	assert.Equal(t, time.Second, parsed.Std())

	require.NoError(t, json.Unmarshal([]byte(`null`), &parsed))
	assert.Zero(t, parsed.Std())

	assert.Error(t, json.Unmarshal([]byte(`"not a duration"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`true`), &parsed))
}

func TestDurationYAML(t *testing.T) {
	var s struct {
		Throttle Duration `yaml:"throttle"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("throttle: 2m30s\n"), &s))
	assert.Equal(t, 150*time.Second, s.Throttle.Std())

	assert.Error(t, yaml.Unmarshal([]byte("throttle: bogus\n"), &s))

	out, err := yaml.Marshal(Duration(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "1m0s\n", string(out))
}

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, 60, Duration(time.Minute).Seconds())
	assert.Equal(t, 0, Duration(500*time.Millisecond).Seconds())
}
