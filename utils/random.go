package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns 2n uppercase hex characters from crypto/rand.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GeneratePNR builds a passenger name record number: "PNR" followed by
// ten uppercase hex characters.
func GeneratePNR() (string, error) {
	code, err := GenerateCode(5)
	if err != nil {
		return "", err
	}
	return "PNR" + code, nil
}
