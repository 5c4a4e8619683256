package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIgnoresMapOrder(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two", "z": []any{true, nil}}
	b := map[string]any{"z": []any{true, nil}, "y": "two", "x": 1}

	ka, err := Key("read", a)
	require.NoError(t, err)
	kb, err := Key("read", b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka, 64)
}

func TestKeyDistinguishesParts(t *testing.T) {
	k1, err := Key("read", map[string]any{"x": 1})
	require.NoError(t, err)
	k2, err := Key("update", map[string]any{"x": 1})
	require.NoError(t, err)
	k3, err := Key("read", map[string]any{"x": 2})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMarshalRoundTripIntoAny(t *testing.T) {
	data, err := Marshal(map[string]any{"id": "42"})
	require.NoError(t, err)
	var out any
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, map[string]any{"id": "42"}, out)
}
