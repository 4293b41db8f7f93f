package wallet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrWrongPasswordOrCorrupt is returned when a cypher cannot be opened,
	// either because the passphrase is wrong or because the data is damaged.
	ErrWrongPasswordOrCorrupt = errors.New("wrong password or corrupt cypher")
	// ErrInvalidScryptCost ...
	ErrInvalidScryptCost = fmt.Errorf(
		"scrypt cost must be in range [%d, %d]", MinScryptLogN, MaxScryptLogN,
	)

	// ErrNullMnemonic ...
	ErrNullMnemonic = fmt.Errorf("%w: must not be null", ErrInvalidMnemonic)
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidWordCount ...
	ErrInvalidWordCount = errors.New(
		"word count must be one of 12, 15, 18, 21, 24",
	)

	// ErrUnknownScheme ...
	ErrUnknownScheme = errors.New("unknown key scheme")
	// ErrInvalidSS58Prefix ...
	ErrInvalidSS58Prefix = errors.New("ss58 prefix must be in range [0, 16383]")
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("invalid ss58 address")
	// ErrInvalidAddressChecksum ...
	ErrInvalidAddressChecksum = errors.New("invalid ss58 address checksum")
)

// Scheme identifies the signature algorithm backing a keypair.
type Scheme int

const (
	SchemeSr25519 Scheme = iota
	SchemeEd25519
	SchemeEcdsa
)

// Index of each scheme in the MultiSignature enum of substrate runtimes.
var multiSignatureIndex = map[Scheme]byte{
	SchemeEd25519: 0,
	SchemeSr25519: 1,
	SchemeEcdsa:   2,
}

var schemeNames = map[Scheme]string{
	SchemeSr25519: "sr25519",
	SchemeEd25519: "ed25519",
	SchemeEcdsa:   "ecdsa",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseScheme returns the Scheme matching the given name, case insensitive.
func ParseScheme(name string) (Scheme, error) {
	for scheme, n := range schemeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return scheme, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownScheme, name)
}
