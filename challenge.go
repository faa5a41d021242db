package discured

import (
	"encoding/base64"
)

// ChallengeFor derives the verification memo for a chat identity. The
// encoding is deterministic and reversible, so a challenge can be
// re-displayed at any time without keeping server-side state: the memo
// on the incoming transfer is compared byte for byte.
func ChallengeFor(chatID string) string {
	return base64.StdEncoding.EncodeToString([]byte(chatID))
}

// ChallengeOwner decodes a verification memo back to the chat identity
// it was issued for. Returns false if the memo is not a challenge.
func ChallengeOwner(memo string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(memo)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
