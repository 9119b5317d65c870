package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

const maxKeyAlphabet = 255

// RandomKey returns a random string of length n drawn uniformly from
// alphabet. Uniformity is kept by masking random bytes down to the
// smallest power-of-two range covering the alphabet and rejecting
// out-of-range values.
func RandomKey(alphabet string, n int) (string, error) {
	if n <= 0 {
		return "", errors.New("key length must be positive")
	}
	if len(alphabet) < 2 || len(alphabet) > maxKeyAlphabet {
		return "", errors.New("alphabet must contain 2..255 characters")
	}
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return "", errors.New("alphabet must be ASCII")
		}
	}

	mask := byte(1)
	for int(mask) < len(alphabet)-1 {
		mask = mask<<1 | 1
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := b & mask
			if int(idx) < len(alphabet) {
				out = append(out, alphabet[idx])
				if len(out) == n {
					break
				}
			}
		}
	}

	return string(out), nil
}

// RandomHex returns n random bytes encoded as lowercase hex.
func RandomHex(n int) (string, error) {
	raw, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("byte count must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
