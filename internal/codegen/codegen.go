package codegen

import (
	"crypto/rand"
	"math/big"
)

// Codes are short and human-typable, so the alphabet skips lowercase:
// students read session codes off a projector.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	sessionCodeLength = 6
	inviteCodeLength  = 6
	invitePrefix      = "INV-"
)

// Random returns a random string of length n over the code alphabet.
func Random(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// broken; nothing sensible to do but stop.
			panic(err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}

// SessionCode returns a fresh 6-character attendance code.
func SessionCode() string {
	return Random(sessionCodeLength)
}

// InviteCode returns a module invite code in the INV-XXXXXX form.
func InviteCode() string {
	return invitePrefix + Random(inviteCodeLength)
}
