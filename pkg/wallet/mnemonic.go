package wallet

import (
	"crypto/sha512"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultWordCount matches the 12 words phrases produced by most
	// substrate wallets.
	DefaultWordCount = 12

	miniSecretSize   = 32
	pbkdf2Iterations = 2048
)

type NewMnemonicOpts struct {
	// WordCount defaults to DefaultWordCount if zero.
	WordCount int
}

func (o NewMnemonicOpts) validate() error {
	if o.WordCount == 0 {
		return nil
	}
	if o.WordCount < 12 || o.WordCount > 24 || o.WordCount%3 != 0 {
		return ErrInvalidWordCount
	}
	return nil
}

func (o NewMnemonicOpts) entropySize() int {
	words := o.WordCount
	if words == 0 {
		words = DefaultWordCount
	}
	// every 3 words encode 32 bits of entropy plus 1 bit of checksum.
	return words / 3 * 32
}

// NewMnemonic returns a new random english BIP-39 mnemonic
func NewMnemonic(opts NewMnemonicOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	entropy, err := bip39.NewEntropy(opts.entropySize())
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases the phrase and collapses the whitespace
// between words.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// IsMnemonicValid returns whether the phrase is made of english BIP-39 words
// with a valid checksum.
func IsMnemonicValid(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// miniSecretFromMnemonic returns the 32 bytes seed substrate wallets derive
// keys from. Unlike plain BIP-39, the PBKDF2 input is the mnemonic entropy
// rather than the phrase itself.
func miniSecretFromMnemonic(mnemonic, password string) ([]byte, error) {
	if len(strings.TrimSpace(mnemonic)) <= 0 {
		return nil, ErrNullMnemonic
	}
	m := NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(m) {
		return nil, ErrInvalidMnemonic
	}
	entropy, err := bip39.EntropyFromMnemonic(m)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	seed := pbkdf2.Key(entropy, []byte("mnemonic"+password), pbkdf2Iterations, 64, sha512.New)
	return seed[:miniSecretSize], nil
}
