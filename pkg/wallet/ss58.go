package wallet

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultSS58Prefix is the generic substrate address format.
	DefaultSS58Prefix = 42
	// MaxSS58Prefix ...
	MaxSS58Prefix = 16383

	accountIDSize     = 32
	ss58ChecksumSize  = 2
	simplePrefixLimit = 64
)

var ss58Context = []byte("SS58PRE")

// EncodeSS58 returns the SS58 address of the given 32 bytes account id for
// the network identified by prefix.
func EncodeSS58(accountID []byte, prefix uint16) (string, error) {
	if prefix > MaxSS58Prefix {
		return "", ErrInvalidSS58Prefix
	}
	if len(accountID) != accountIDSize {
		return "", ErrInvalidAddress
	}

	data := append(encodeSS58Prefix(prefix), accountID...)
	checksum := ss58Checksum(data)
	data = append(data, checksum[:ss58ChecksumSize]...)
	return base58.Encode(data), nil
}

// DecodeSS58 returns the account id and network prefix of an SS58 address.
func DecodeSS58(address string) ([]byte, uint16, error) {
	data := base58.Decode(address)
	if len(data) < 2 {
		return nil, 0, ErrInvalidAddress
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case data[0] < simplePrefixLimit:
		prefix = uint16(data[0])
	case data[0] < 128:
		prefixLen = 2
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return nil, 0, ErrInvalidAddress
	}

	if len(data) != prefixLen+accountIDSize+ss58ChecksumSize {
		return nil, 0, ErrInvalidAddress
	}
	body := data[:prefixLen+accountIDSize]
	checksum := ss58Checksum(body)
	if !bytes.Equal(checksum[:ss58ChecksumSize], data[len(body):]) {
		return nil, 0, ErrInvalidAddressChecksum
	}

	accountID := make([]byte, accountIDSize)
	copy(accountID, body[prefixLen:])
	return accountID, prefix, nil
}

func encodeSS58Prefix(prefix uint16) []byte {
	if prefix < simplePrefixLimit {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0xfc)>>2) | 0x40
	second := byte(prefix>>8) | byte((prefix&0x03)<<6)
	return []byte{first, second}
}

func ss58Checksum(data []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, ss58Context...), data...))
}
