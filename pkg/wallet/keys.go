package wallet

import (
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"golang.org/x/crypto/blake2b"
)

const (
	ecdsaSignatureSize = 65
	// offset added to the recovery id by btcec for compressed keys.
	compactSigCompressedOffset = 27 + 4
)

var sr25519SigningContext = []byte("substrate")

// Keypair is a signing key usable to author substrate extrinsics.
type Keypair interface {
	Scheme() Scheme
	PublicKey() []byte
	// AccountID is the 32 bytes id the runtime identifies the signer with.
	AccountID() []byte
	Sign(msg []byte) ([]byte, error)
	Verify(msg, sig []byte) bool
	// MultiSignature returns the signature prefixed by the scheme index, as
	// expected by the runtime MultiSignature enum.
	MultiSignature(msg []byte) ([]byte, error)
}

// DeriverOpts is the struct given to NewDeriver method
type DeriverOpts struct {
	Scheme     Scheme
	SS58Prefix uint16
}

func (o DeriverOpts) validate() error {
	if _, ok := schemeNames[o.Scheme]; !ok {
		return ErrUnknownScheme
	}
	if o.SS58Prefix > MaxSS58Prefix {
		return ErrInvalidSS58Prefix
	}
	return nil
}

// Deriver turns mnemonics into keypairs and SS58 account ids. It holds no
// state other than its options and is safe for concurrent use.
type Deriver struct {
	scheme Scheme
	prefix uint16
}

func NewDeriver(opts DeriverOpts) (*Deriver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Deriver{opts.Scheme, opts.SS58Prefix}, nil
}

func (d *Deriver) Scheme() Scheme {
	return d.scheme
}

func (d *Deriver) SS58Prefix() uint16 {
	return d.prefix
}

// Derive returns the keypair and the SS58 account id for the given mnemonic.
// The same mnemonic always yields the same result.
func (d *Deriver) Derive(mnemonic string) (Keypair, string, error) {
	seed, err := miniSecretFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, "", err
	}

	var key Keypair
	switch d.scheme {
	case SchemeSr25519:
		key, err = newSr25519Keypair(seed)
	case SchemeEd25519:
		key = newEd25519Keypair(seed)
	case SchemeEcdsa:
		key = newEcdsaKeypair(seed)
	default:
		err = ErrUnknownScheme
	}
	if err != nil {
		return nil, "", err
	}

	accountID, err := EncodeSS58(key.AccountID(), d.prefix)
	if err != nil {
		return nil, "", err
	}
	return key, accountID, nil
}

type sr25519Keypair struct {
	secret *schnorrkel.SecretKey
	public *schnorrkel.PublicKey
}

func newSr25519Keypair(seed []byte) (*sr25519Keypair, error) {
	var raw [schnorrkel.MiniSecretKeySize]byte
	copy(raw[:], seed)
	miniSecret, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, err
	}
	secret := miniSecret.ExpandEd25519()
	public, err := secret.Public()
	if err != nil {
		return nil, err
	}
	return &sr25519Keypair{secret, public}, nil
}

func (k *sr25519Keypair) Scheme() Scheme {
	return SchemeSr25519
}

func (k *sr25519Keypair) PublicKey() []byte {
	pub := k.public.Encode()
	return pub[:]
}

func (k *sr25519Keypair) AccountID() []byte {
	return k.PublicKey()
}

func (k *sr25519Keypair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext(sr25519SigningContext, msg))
	if err != nil {
		return nil, err
	}
	encoded := sig.Encode()
	return encoded[:], nil
}

func (k *sr25519Keypair) Verify(msg, sig []byte) bool {
	if len(sig) != schnorrkel.SignatureSize {
		return false
	}
	var raw [schnorrkel.SignatureSize]byte
	copy(raw[:], sig)
	signature := &schnorrkel.Signature{}
	if err := signature.Decode(raw); err != nil {
		return false
	}
	ok, err := k.public.Verify(
		signature, schnorrkel.NewSigningContext(sr25519SigningContext, msg),
	)
	return err == nil && ok
}

func (k *sr25519Keypair) MultiSignature(msg []byte) ([]byte, error) {
	return multiSignature(k, msg)
}

type ed25519Keypair struct {
	secret ed25519.PrivateKey
	public ed25519.PublicKey
}

func newEd25519Keypair(seed []byte) *ed25519Keypair {
	secret := ed25519.NewKeyFromSeed(seed)
	return &ed25519Keypair{secret, secret.Public().(ed25519.PublicKey)}
}

func (k *ed25519Keypair) Scheme() Scheme {
	return SchemeEd25519
}

func (k *ed25519Keypair) PublicKey() []byte {
	return append([]byte{}, k.public...)
}

func (k *ed25519Keypair) AccountID() []byte {
	return k.PublicKey()
}

func (k *ed25519Keypair) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.secret, msg), nil
}

func (k *ed25519Keypair) Verify(msg, sig []byte) bool {
	return ed25519.Verify(k.public, msg, sig)
}

func (k *ed25519Keypair) MultiSignature(msg []byte) ([]byte, error) {
	return multiSignature(k, msg)
}

type ecdsaKeypair struct {
	secret *btcec.PrivateKey
	public *btcec.PublicKey
}

func newEcdsaKeypair(seed []byte) *ecdsaKeypair {
	secret, public := btcec.PrivKeyFromBytes(seed)
	return &ecdsaKeypair{secret, public}
}

func (k *ecdsaKeypair) Scheme() Scheme {
	return SchemeEcdsa
}

func (k *ecdsaKeypair) PublicKey() []byte {
	return k.public.SerializeCompressed()
}

func (k *ecdsaKeypair) AccountID() []byte {
	id := blake2b.Sum256(k.PublicKey())
	return id[:]
}

// Sign returns a 65 bytes recoverable signature in the r|s|v layout over the
// blake2b-256 hash of msg.
func (k *ecdsaKeypair) Sign(msg []byte) ([]byte, error) {
	hash := blake2b.Sum256(msg)
	compact, err := ecdsa.SignCompact(k.secret, hash[:], true)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 0, ecdsaSignatureSize)
	sig = append(sig, compact[1:]...)
	sig = append(sig, compact[0]-compactSigCompressedOffset)
	return sig, nil
}

func (k *ecdsaKeypair) Verify(msg, sig []byte) bool {
	if len(sig) != ecdsaSignatureSize || sig[64] > 3 {
		return false
	}
	hash := blake2b.Sum256(msg)
	compact := make([]byte, 0, ecdsaSignatureSize)
	compact = append(compact, sig[64]+compactSigCompressedOffset)
	compact = append(compact, sig[:64]...)
	public, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return false
	}
	return public.IsEqual(k.public)
}

func (k *ecdsaKeypair) MultiSignature(msg []byte) ([]byte, error) {
	return multiSignature(k, msg)
}

func multiSignature(k Keypair, msg []byte) ([]byte, error) {
	sig, err := k.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign with %s key: %w", k.Scheme(), err)
	}
	return append([]byte{multiSignatureIndex[k.Scheme()]}, sig...), nil
}
