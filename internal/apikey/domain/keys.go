package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// KeyPrefix marks keys minted by this service. A bootstrap key supplied via
// ADMIN_API_KEY must not use it, since the embedded key id is checked.
const KeyPrefix = "drvb_live_"

const keyIDPrefix = "key_"

// HashAPIKey is the lookup hash stored in place of the raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewKeyID renders a snowflake as the public key id, e.g. "key_1A2B3C".
func NewKeyID(id snowflake.ID) string {
	return keyIDPrefix + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}

// FormatAPIKey builds the raw key shown to the caller once:
// drvb_live_<key id suffix>_<secret hex>.
func FormatAPIKey(keyID, secretHex string) string {
	return KeyPrefix + strings.TrimPrefix(keyID, keyIDPrefix) + "_" + secretHex
}

// KeyIDFromAPIKey recovers the key id embedded in a minted key. It reports
// false for keys that were not minted by FormatAPIKey.
func KeyIDFromAPIKey(raw string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), KeyPrefix)
	if !ok {
		return "", false
	}
	suffix, secret, ok := strings.Cut(rest, "_")
	if !ok || suffix == "" || secret == "" {
		return "", false
	}
	return keyIDPrefix + suffix, true
}
