// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package passwords contains the password helpers for PostgreSQL md5
// authentication.
package passwords

import (
	"crypto/md5" //nolint:gosec // md5 is what PostgreSQL password authentication uses
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a random password of 24 letters and digits.
func Generate() string {
	return GenerateWithLength(24)
}

// GenerateWithLength returns a random password of the given length.
func GenerateWithLength(length int) string {
	buf := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	for idx := range buf {
		pos, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			panic(err.Error())
		}
		buf[idx] = passwordAlphabet[pos.Int64()]
	}
	return string(buf)
}

// MD5Hash returns the md5 password hash as PostgreSQL stores it: the md5 of
// password concatenated with username, prefixed with "md5".
func MD5Hash(username, password string) string {
	sum := md5.Sum([]byte(password + username)) //nolint:gosec
	return "md5" + hex.EncodeToString(sum[:])
}
