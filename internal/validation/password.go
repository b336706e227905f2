package validation

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const tempPasswordLength = 24

// Character classes for generated passwords. Similar-looking characters
// (0/O, 1/l/I) are excluded so the value survives being read aloud.
const (
	passwordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordLower   = "abcdefghijkmnopqrstuvwxyz"
	passwordDigits  = "23456789"
	passwordSymbols = "!@#$%^&*()-_=+"
)

// GeneratePassword returns a random 24-character password with at least one
// character from every class, suitable as the initial password of a
// provisioned account.
func GeneratePassword() (string, error) {
	classes := []string{passwordUpper, passwordLower, passwordDigits, passwordSymbols}
	all := passwordUpper + passwordLower + passwordDigits + passwordSymbols

	buf := make([]byte, 0, tempPasswordLength)
	for _, class := range classes {
		c, err := randomFrom(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < tempPasswordLength {
		c, err := randomFrom(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	if err := shuffle(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func randomFrom(set string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("random byte: %w", err)
	}
	return set[i.Int64()], nil
}

func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("shuffle: %w", err)
		}
		buf[i], buf[int(j.Int64())] = buf[int(j.Int64())], buf[i]
	}
	return nil
}
