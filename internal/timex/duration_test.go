package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration)

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	out, err := json.Marshal(Duration{Duration: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
