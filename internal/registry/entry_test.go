package registry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldingUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{name: "number", raw: `42.0`, want: 42.0},
		{name: "integer", raw: `0`, want: 0},
		{name: "numeric string", raw: `"1e300"`, want: 1e300},
		{name: "inf string", raw: `"inf"`, want: math.Inf(1)},
		{name: "Infinity string", raw: `"Infinity"`, want: math.Inf(1)},
		{name: "infinite string", raw: `"infinite"`, want: math.Inf(1)},
		{name: "padded inf", raw: `" inf "`, want: math.Inf(1)},
		{name: "garbage string", raw: `"soon"`, wantErr: true},
		{name: "object", raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Holding
			err := json.Unmarshal([]byte(tt.raw), &h)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, float64(h))
		})
	}
}

func TestHoldingMarshalInfRoundTrip(t *testing.T) {
	data, err := json.Marshal(Infinite())
	require.NoError(t, err)
	assert.Equal(t, `"inf"`, string(data))

	var back Holding
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.IsInfinite())
}

func TestHoldingMarshalFinite(t *testing.T) {
	data, err := json.Marshal(Holding(42))
	require.NoError(t, err)
	assert.Equal(t, `42`, string(data))
}

func TestEntryHoldingNormalizedOnDecode(t *testing.T) {
	raw := `{"path":"/as","file":"/sims/0.txt","user":"inigo","holding":"inf","created":1.0}`
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.True(t, e.Holding.IsInfinite())
	assert.Equal(t, "/as", e.Path)
}
