package substrate

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"
)

const (
	extrinsicVersion   = 4
	signedBit          = 0b1000_0000
	immortalEra        = 0x00
	multiAddressID     = 0x00
	metadataHashOff    = 0x00
	optionNone         = 0x00
	maxPayloadLen      = 256
	maxExtrinsicLength = 5 * 1024 * 1024
)

// extrinsicOpts holds everything a signed extrinsic commits to besides the
// call itself.
type extrinsicOpts struct {
	call               []byte
	nonce              uint64
	specVersion        uint32
	transactionVersion uint32
	genesisHash        []byte
	// metadataHash enables the CheckMetadataHash signed extension, in
	// disabled mode.
	metadataHash bool
}

func (o extrinsicOpts) validate() error {
	if len(o.call) < 2 {
		return fmt.Errorf("call must be at least 2 bytes")
	}
	if len(o.genesisHash) != 32 {
		return fmt.Errorf("genesis hash must be 32 bytes")
	}
	return nil
}

// signingPayload returns the bytes to be signed: call, signed extra and
// additional signed data. Payloads longer than 256 bytes are replaced by
// their blake2b-256 hash.
func signingPayload(opts extrinsicOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	enc := scale.NewEncoder(buf)
	if _, err := scale.EncodeByteArray(enc, opts.call); err != nil {
		return nil, err
	}
	if err := encodeExtra(enc, opts); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeUint32(enc, opts.specVersion); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeUint32(enc, opts.transactionVersion); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, opts.genesisHash); err != nil {
		return nil, err
	}
	// the era is immortal, so the checkpoint block is the genesis one.
	if _, err := scale.EncodeByteArray(enc, opts.genesisHash); err != nil {
		return nil, err
	}
	if opts.metadataHash {
		if _, err := scale.EncodeByte(enc, optionNone); err != nil {
			return nil, err
		}
	}

	payload := buf.Bytes()
	if len(payload) > maxPayloadLen {
		hash := blake2b.Sum256(payload)
		return hash[:], nil
	}
	return payload, nil
}

// buildExtrinsic signs the call with the given key and returns the length
// prefixed v4 signed extrinsic.
func buildExtrinsic(opts extrinsicOpts, key wallet.Keypair) ([]byte, error) {
	payload, err := signingPayload(opts)
	if err != nil {
		return nil, err
	}
	signature, err := key.MultiSignature(payload)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	enc := scale.NewEncoder(body)
	if _, err := scale.EncodeByte(enc, signedBit|extrinsicVersion); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByte(enc, multiAddressID); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, key.AccountID()); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, signature); err != nil {
		return nil, err
	}
	if err := encodeExtra(enc, opts); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, opts.call); err != nil {
		return nil, err
	}

	extrinsic := &bytes.Buffer{}
	if _, err := scale.EncodeByteSliceWithLimit(
		scale.NewEncoder(extrinsic), body.Bytes(), maxExtrinsicLength,
	); err != nil {
		return nil, err
	}
	return extrinsic.Bytes(), nil
}

// encodeExtra writes the signed extensions data included in the extrinsic:
// era, nonce, tip and, if enabled, the metadata hash mode.
func encodeExtra(enc *scale.Encoder, opts extrinsicOpts) error {
	if _, err := scale.EncodeByte(enc, immortalEra); err != nil {
		return err
	}
	if _, err := scale.EncodeCompact64(enc, opts.nonce); err != nil {
		return err
	}
	// no tip.
	if _, err := scale.EncodeCompact64(enc, 0); err != nil {
		return err
	}
	if opts.metadataHash {
		if _, err := scale.EncodeByte(enc, metadataHashOff); err != nil {
			return err
		}
	}
	return nil
}

func extrinsicHash(extrinsic []byte) string {
	hash := blake2b.Sum256(extrinsic)
	return encodeHex(hash[:])
}

func encodeHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func decodeHex(str string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(str, "0x"))
}
