package anchor

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// DiscriminatorSize is the length of the Anchor type prefix on accounts and instruction data.
const DiscriminatorSize = 8

var (
	ErrAccountTooShort       = errors.New("account data shorter than discriminator")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
)

// GetDiscriminator returns the first 8 bytes of sha256("<namespace>:<name>").
func GetDiscriminator(namespace string, name string) []byte {
	return bin.Sighash(namespace, name)
}

// InstructionDiscriminator returns the discriminator for a program instruction
// given its snake_case name, e.g. "deposit_gem".
func InstructionDiscriminator(name string) []byte {
	return GetDiscriminator(bin.SIGHASH_GLOBAL_NAMESPACE, name)
}

// AccountDiscriminator returns the discriminator for an account type, e.g. "Farmer".
func AccountDiscriminator(name string) []byte {
	return GetDiscriminator(bin.SIGHASH_ACCOUNT_NAMESPACE, name)
}

// HasDiscriminator reports whether data starts with the discriminator of the named account.
func HasDiscriminator(data []byte, name string) bool {
	if len(data) < DiscriminatorSize {
		return false
	}
	return bytes.Equal(data[:DiscriminatorSize], AccountDiscriminator(name))
}

// DecodeAccount checks the account discriminator and borsh-decodes the body into v.
func DecodeAccount(data []byte, name string, v interface{}) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%s: %w: got %d bytes", name, ErrAccountTooShort, len(data))
	}
	if !HasDiscriminator(data, name) {
		return fmt.Errorf("%s: %w", name, ErrDiscriminatorMismatch)
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// EncodeAccount is the inverse of DecodeAccount. Used to build fixtures and cache snapshots.
func EncodeAccount(name string, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(AccountDiscriminator(name))
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
