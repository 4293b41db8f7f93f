package substrate

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const testMnemonic = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

var testGenesisHash = bytes.Repeat([]byte{0xab}, 32)

func TestSigningPayload(t *testing.T) {
	opts := extrinsicOpts{
		call:               []byte{0x00, 0x00, 0x14, 'h', 'e', 'l', 'l', 'o'},
		nonce:              1,
		specVersion:        100,
		transactionVersion: 1,
		genesisHash:        testGenesisHash,
	}

	payload, err := signingPayload(opts)
	require.NoError(t, err)

	expected := "0000" + "14" + hex.EncodeToString([]byte("hello")) +
		"00" + "04" + "00" +
		"64000000" + "01000000" +
		hex.EncodeToString(testGenesisHash) + hex.EncodeToString(testGenesisHash)
	require.Equal(t, expected, hex.EncodeToString(payload))

	opts.metadataHash = true
	payload, err = signingPayload(opts)
	require.NoError(t, err)

	expected = "0000" + "14" + hex.EncodeToString([]byte("hello")) +
		"00" + "04" + "00" + "00" +
		"64000000" + "01000000" +
		hex.EncodeToString(testGenesisHash) + hex.EncodeToString(testGenesisHash) +
		"00"
	require.Equal(t, expected, hex.EncodeToString(payload))
}

func TestLongSigningPayloadIsHashed(t *testing.T) {
	call := append([]byte{0x00, 0x00}, bytes.Repeat([]byte{0x01}, 300)...)
	opts := extrinsicOpts{
		call:        call,
		genesisHash: testGenesisHash,
	}

	payload, err := signingPayload(opts)
	require.NoError(t, err)
	require.Len(t, payload, 32)

	full := append([]byte{}, call...)
	full = append(full, 0x00, 0x00, 0x00)
	full = append(full, make([]byte, 8)...)
	full = append(full, testGenesisHash...)
	full = append(full, testGenesisHash...)
	expected := blake2b.Sum256(full)
	require.Equal(t, expected[:], payload)
}

func TestBuildExtrinsic(t *testing.T) {
	schemes := []wallet.Scheme{
		wallet.SchemeSr25519, wallet.SchemeEd25519, wallet.SchemeEcdsa,
	}
	signatureSizes := map[wallet.Scheme]int{
		wallet.SchemeSr25519: 64,
		wallet.SchemeEd25519: 64,
		wallet.SchemeEcdsa:   65,
	}
	signatureIndexes := map[wallet.Scheme]byte{
		wallet.SchemeEd25519: 0,
		wallet.SchemeSr25519: 1,
		wallet.SchemeEcdsa:   2,
	}

	for _, scheme := range schemes {
		scheme := scheme
		t.Run(scheme.String(), func(t *testing.T) {
			key := deriveTestKey(t, scheme)
			opts := extrinsicOpts{
				call:               []byte{0x00, 0x00, 0x00},
				nonce:              7,
				specVersion:        100,
				transactionVersion: 1,
				genesisHash:        testGenesisHash,
			}

			extrinsic, err := buildExtrinsic(opts, key)
			require.NoError(t, err)

			sigSize := signatureSizes[scheme]
			bodyLen := 1 + 1 + 32 + 1 + sigSize + 3 + len(opts.call)
			// two bytes compact length prefix.
			prefix := uint16(bodyLen<<2 | 0b01)
			require.Equal(t, []byte{byte(prefix), byte(prefix >> 8)}, extrinsic[:2])

			body := extrinsic[2:]
			require.Len(t, body, bodyLen)
			require.Equal(t, byte(0x84), body[0])
			require.Equal(t, byte(0x00), body[1])
			require.Equal(t, key.AccountID(), body[2:34])
			require.Equal(t, signatureIndexes[scheme], body[34])

			signature := body[35 : 35+sigSize]
			rest := body[35+sigSize:]
			require.Equal(t, []byte{0x00, 0x1c, 0x00}, rest[:3])
			require.Equal(t, opts.call, rest[3:])

			payload, err := signingPayload(opts)
			require.NoError(t, err)
			require.True(t, key.Verify(payload, signature))
		})
	}
}

func TestFailingBuildExtrinsic(t *testing.T) {
	key := deriveTestKey(t, wallet.SchemeSr25519)

	_, err := buildExtrinsic(extrinsicOpts{
		call: []byte{0x00}, genesisHash: testGenesisHash,
	}, key)
	require.Error(t, err)

	_, err = buildExtrinsic(extrinsicOpts{
		call: []byte{0x00, 0x00}, genesisHash: []byte{0x01},
	}, key)
	require.Error(t, err)
}

func deriveTestKey(t *testing.T, scheme wallet.Scheme) wallet.Keypair {
	deriver, err := wallet.NewDeriver(wallet.DeriverOpts{
		Scheme:     scheme,
		SS58Prefix: wallet.DefaultSS58Prefix,
	})
	require.NoError(t, err)

	key, _, err := deriver.Derive(testMnemonic)
	require.NoError(t, err)
	return key
}
