package utils

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSealedTooShort = errors.New("sealed value too short")

// Sealer encrypts small secrets (signer credentials) before they are stored.
// The output is nonce || box.
type Sealer struct {
	key [32]byte
}

func NewSealer(key [32]byte) *Sealer { return &Sealer{key: key} }

// Seal encrypts plain under a fresh random nonce.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open reverses Seal and fails when the value was tampered with or sealed
// under another key.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24+secretbox.Overhead {
		return nil, ErrSealedTooShort
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed value could not be opened")
	}
	return plain, nil
}
