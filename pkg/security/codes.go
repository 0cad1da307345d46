package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ShortCodeCharset drops the glyphs staff confuse when typing codes by hand
// (0/O, 1/I/L).
const ShortCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// ShortCodeLength is the length of a human-typable token code.
const ShortCodeLength = 6

// GenerateCode returns a uniformly random string of length drawn from charset.
func GenerateCode(charset string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	alphabet := []rune(charset)
	if len(alphabet) == 0 {
		return "", fmt.Errorf("charset cannot be empty")
	}

	result := make([]rune, length)
	for i := 0; i < length; i++ {
		idx, err := randInt(len(alphabet))
		if err != nil {
			return "", err
		}
		result[i] = alphabet[idx]
	}
	return string(result), nil
}

// GenerateShortCode returns a code drawn from ShortCodeCharset.
func GenerateShortCode() (string, error) {
	return GenerateCode(ShortCodeCharset, ShortCodeLength)
}

// IsShortCode reports whether code could have been produced by GenerateShortCode.
func IsShortCode(code string) bool {
	if len(code) != ShortCodeLength {
		return false
	}
	for _, r := range code {
		found := false
		for _, c := range ShortCodeCharset {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
