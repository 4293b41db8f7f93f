package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

var allSchemes = []Scheme{SchemeSr25519, SchemeEd25519, SchemeEcdsa}

func TestMiniSecretFromMnemonic(t *testing.T) {
	seed, err := miniSecretFromMnemonic(
		"legal winner thank year wave sausage worth useful legal winner thank yellow",
		"Substrate",
	)
	require.NoError(t, err)
	require.Equal(
		t,
		"4313249608fe8ac10fd5886c92c4579007272cb77c21551ee5b8d60b78041685",
		hex.EncodeToString(seed),
	)
}

func TestDerive(t *testing.T) {
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			deriver, err := NewDeriver(DeriverOpts{
				Scheme:     scheme,
				SS58Prefix: DefaultSS58Prefix,
			})
			require.NoError(t, err)

			key, accountID, err := deriver.Derive(testMnemonic)
			require.NoError(t, err)
			require.NotNil(t, key)
			require.Equal(t, scheme, key.Scheme())
			require.Len(t, key.AccountID(), accountIDSize)

			otherKey, otherAccountID, err := deriver.Derive(
				"  Bottom drive obey lake curtain smoke basket hold race lonely fit   walk ",
			)
			require.NoError(t, err)
			require.Equal(t, accountID, otherAccountID)
			require.Equal(t, key.PublicKey(), otherKey.PublicKey())

			id, prefix, err := DecodeSS58(accountID)
			require.NoError(t, err)
			require.Equal(t, uint16(DefaultSS58Prefix), prefix)
			require.Equal(t, key.AccountID(), id)
		})
	}
}

func TestDeriveDistinctSchemes(t *testing.T) {
	ids := map[string]Scheme{}
	for _, scheme := range allSchemes {
		deriver, err := NewDeriver(DeriverOpts{Scheme: scheme})
		require.NoError(t, err)
		_, accountID, err := deriver.Derive(testMnemonic)
		require.NoError(t, err)
		require.NotContains(t, ids, accountID)
		ids[accountID] = scheme
	}
}

func TestSignVerify(t *testing.T) {
	msg := []byte("shivarthu")
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			deriver, err := NewDeriver(DeriverOpts{Scheme: scheme})
			require.NoError(t, err)
			key, _, err := deriver.Derive(testMnemonic)
			require.NoError(t, err)

			sig, err := key.Sign(msg)
			require.NoError(t, err)
			require.True(t, key.Verify(msg, sig))
			require.False(t, key.Verify([]byte("another message"), sig))

			multiSig, err := key.MultiSignature(msg)
			require.NoError(t, err)
			require.Equal(t, multiSignatureIndex[scheme], multiSig[0])
			require.True(t, key.Verify(msg, multiSig[1:]))
		})
	}
}

func TestFailingDerive(t *testing.T) {
	deriver, err := NewDeriver(DeriverOpts{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		mnemonic string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unknown_word", "bottom drive obey lake curtain smoke basket hold race lonely fit shivarthu"},
		{"bad_checksum", "bottom drive obey lake curtain smoke basket hold race lonely fit fit"},
		{"short", "bottom drive obey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, accountID, err := deriver.Derive(tt.mnemonic)
			require.ErrorIs(t, err, ErrInvalidMnemonic)
			require.Nil(t, key)
			require.Empty(t, accountID)
		})
	}
}

func TestFailingNewDeriver(t *testing.T) {
	_, err := NewDeriver(DeriverOpts{Scheme: Scheme(10)})
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = NewDeriver(DeriverOpts{SS58Prefix: MaxSS58Prefix + 1})
	require.ErrorIs(t, err, ErrInvalidSS58Prefix)
}

func TestParseScheme(t *testing.T) {
	scheme, err := ParseScheme("SR25519")
	require.NoError(t, err)
	require.Equal(t, SchemeSr25519, scheme)

	scheme, err = ParseScheme("ecdsa")
	require.NoError(t, err)
	require.Equal(t, SchemeEcdsa, scheme)

	_, err = ParseScheme("secp256r1")
	require.ErrorIs(t, err, ErrUnknownScheme)
}
