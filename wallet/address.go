package wallet

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	addrPayloadLen  = 20 // hash of the owner key
	addrChecksumLen = 4
)

// Address is the base58 form of a 20-byte account key hash followed by a
// 4-byte checksum. The zero value is invalid.
type Address string

// ParseAddress decodes and checks s, returning it as an Address.
func ParseAddress(s string) (Address, error) {
	a := Address(s)
	if err := a.Check(); err != nil {
		return "", err
	}
	return a, nil
}

// AddressFromPayload builds the address for a 20-byte key hash.
func AddressFromPayload(payload []byte) (Address, error) {
	if len(payload) != addrPayloadLen {
		return "", fmt.Errorf("address payload must be %d bytes, got %d", addrPayloadLen, len(payload))
	}
	buf := make([]byte, 0, addrPayloadLen+addrChecksumLen)
	buf = append(buf, payload...)
	buf = append(buf, addrChecksum(payload)...)
	return Address(base58.Encode(buf)), nil
}

// Check verifies the encoding, length, and checksum. Local validation
// only; whether the daemon knows the address is a separate question
// answered by Client.ValidateAddress.
func (a Address) Check() error {
	raw, err := base58.Decode(string(a))
	if err != nil {
		return fmt.Errorf("address %q: %w", string(a), err)
	}
	if len(raw) != addrPayloadLen+addrChecksumLen {
		return fmt.Errorf("address %q: wrong length %d", string(a), len(raw))
	}
	payload, sum := raw[:addrPayloadLen], raw[addrPayloadLen:]
	for i, b := range addrChecksum(payload) {
		if sum[i] != b {
			return fmt.Errorf("address %q: checksum mismatch", string(a))
		}
	}
	return nil
}

func (a Address) String() string {
	return string(a)
}

// addrChecksum is the first 4 bytes of a double sha256 over the payload.
func addrChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:addrChecksumLen]
}
