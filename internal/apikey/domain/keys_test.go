package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestKeyIDRoundTripsThroughFormattedKey(t *testing.T) {
	keyID := NewKeyID(snowflake.ID(123456789))
	assert.Equal(t, "key_21I3V9", keyID)

	raw := FormatAPIKey(keyID, "deadbeef")
	assert.Equal(t, "drvb_live_21I3V9_deadbeef", raw)

	got, ok := KeyIDFromAPIKey(raw)
	assert.True(t, ok)
	assert.Equal(t, keyID, got)
}

func TestKeyIDFromAPIKeyRejectsForeignKeys(t *testing.T) {
	for _, raw := range []string{"", "bootstrap-secret", "drvb_live_", "drvb_live_ABC", "drvb_live__abc"} {
		_, ok := KeyIDFromAPIKey(raw)
		assert.False(t, ok, raw)
	}
}

func TestHashAPIKeyIsStable(t *testing.T) {
	assert.Equal(t, HashAPIKey("a"), HashAPIKey("a"))
	assert.NotEqual(t, HashAPIKey("a"), HashAPIKey("b"))
	assert.Len(t, HashAPIKey("a"), 64)
}
