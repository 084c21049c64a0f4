package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// KeyLength is the number of hex characters kept from the digest.
const KeyLength = 16

// Key derives the deterministic cache key for a synthesized phrase. The same
// text, voice and speaking rate always map to the same artifact.
func Key(text, voice string, speakingRate float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%g", text, voice, speakingRate)))
	return hex.EncodeToString(sum[:])[:KeyLength]
}
