package fake

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/Jumpaku/go-boxfs/errors"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func verify(data []byte, want string) error {
	if want == "" {
		return nil
	}
	if got := sha1Hex(data); got != want {
		return errors.NewIOError("sha1 mismatch: got "+got+", want "+want, nil)
	}
	return nil
}
