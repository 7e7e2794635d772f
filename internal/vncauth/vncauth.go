// Package vncauth implements the RFB VNC Authentication security type
// (type 2): a DES challenge-response keyed on a shared password, bit-order
// quirk included.
//
// Grounded on hduplooy-gorfb/gorfb.go's fixDesKeyByte/fixDesKey/agreeSecurity
// (the only example in the pack that implements VNC auth at all).
package vncauth

import (
	"bytes"
	"crypto/des"
	"crypto/rand"
)

// ChallengeSize is the fixed size of the VNC auth challenge and response
// (RFC 6143 §7.2.2).
const ChallengeSize = 16

// NewChallenge returns ChallengeSize random bytes to send to the client.
func NewChallenge() ([]byte, error) {
	buf := make([]byte, ChallengeSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Verify reports whether response is the correct DES encryption of
// challenge under password. VNC auth famously bit-reverses each key byte
// before use — a quirk of the original RealVNC implementation that every
// interoperable server and viewer must reproduce.
func Verify(password string, challenge, response []byte) (bool, error) {
	expected, err := Encrypt(password, challenge)
	if err != nil {
		return false, err
	}
	return bytes.Equal(expected, response), nil
}

// Encrypt DES-encrypts challenge (in two 8-byte ECB blocks) under the
// bit-reversed password-derived key. Used both to verify a client's
// response and, in tests, to construct one.
func Encrypt(password string, challenge []byte) ([]byte, error) {
	block, err := des.NewCipher(desKey(password))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(challenge))
	for off := 0; off+des.BlockSize <= len(challenge); off += des.BlockSize {
		block.Encrypt(out[off:off+des.BlockSize], challenge[off:off+des.BlockSize])
	}
	return out, nil
}

// desKey truncates/pads the password to 8 bytes and bit-reverses each byte,
// per the VNC auth key-derivation quirk.
func desKey(password string) []byte {
	raw := []byte(password)
	key := make([]byte, des.BlockSize)
	copy(key, raw)
	for i := range key {
		key[i] = reverseBits(key[i])
	}
	return key
}

func reverseBits(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out <<= 1
		out |= b & 1
		b >>= 1
	}
	return out
}
