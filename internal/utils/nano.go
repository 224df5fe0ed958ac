package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	NanoidSize     = 24
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NanoID returns a URL safe identifier used for drafts and staged uploads.
func NanoID() string {
	return gonanoid.MustGenerate(nanoidAlphabet, NanoidSize)
}

// KeyedNanoID joins prefix and a fresh id with a slash, e.g. a staging key.
func KeyedNanoID(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, NanoID())
}
