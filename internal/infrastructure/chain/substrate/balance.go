package substrate

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"
)

const (
	methodGetStorage = "state_getStorage"

	accountIDSize = 32
)

// twox128("System") ++ twox128("Account")
var systemAccountPrefix = []byte{
	0x26, 0xaa, 0x39, 0x4e, 0xea, 0x56, 0x30, 0xe0,
	0x7c, 0x48, 0xae, 0x0c, 0x95, 0x58, 0xce, 0xf7,
	0xb9, 0x9d, 0x88, 0x0e, 0xc6, 0x81, 0x79, 0x9c,
	0x0c, 0xf3, 0x0e, 0x88, 0x86, 0x37, 0x1d, 0xa9,
}

func (c *connection) Balance(
	ctx context.Context, accountID []byte,
) (ports.AccountBalance, error) {
	if len(accountID) != accountIDSize {
		return ports.AccountBalance{}, fmt.Errorf(
			"%w: account id must be %d bytes", ports.ErrQuery, accountIDSize,
		)
	}

	var value *string
	if err := c.rpc.call(
		ctx, &value, methodGetStorage, encodeHex(systemAccountKey(accountID)),
	); err != nil {
		return ports.AccountBalance{}, fmt.Errorf("%w: %s", ports.ErrQuery, err)
	}
	if value == nil {
		return zeroBalance(), nil
	}

	data, err := decodeHex(*value)
	if err != nil {
		return ports.AccountBalance{}, fmt.Errorf("%w: %s", ports.ErrQuery, err)
	}
	balance, err := decodeAccountInfo(data)
	if err != nil {
		return ports.AccountBalance{}, fmt.Errorf(
			"%w: invalid account info: %s", ports.ErrQuery, err,
		)
	}
	return balance, nil
}

// systemAccountKey returns the storage key of System.Account for the given
// account id, a Blake2_128Concat map.
func systemAccountKey(accountID []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(accountID)

	key := make([]byte, 0, len(systemAccountPrefix)+16+len(accountID))
	key = append(key, systemAccountPrefix...)
	key = h.Sum(key)
	return append(key, accountID...)
}

// decodeAccountInfo decodes the leading fields of a SCALE encoded
// AccountInfo: nonce, consumers, providers, sufficients, then the free,
// reserved and frozen balances of AccountData. Runtimes with the older
// misc_frozen/fee_frozen layout report misc_frozen as frozen.
func decodeAccountInfo(data []byte) (ports.AccountBalance, error) {
	dec := scale.NewDecoder(bytes.NewReader(data))

	nonce, _, err := scale.DecodeUint32(dec)
	if err != nil {
		return ports.AccountBalance{}, err
	}
	// consumers, providers, sufficients
	for i := 0; i < 3; i++ {
		if _, _, err := scale.DecodeUint32(dec); err != nil {
			return ports.AccountBalance{}, err
		}
	}

	amounts := make([]*big.Int, 3)
	for i := range amounts {
		if amounts[i], err = decodeUint128(dec); err != nil {
			return ports.AccountBalance{}, err
		}
	}

	return ports.AccountBalance{
		Nonce:    nonce,
		Free:     amounts[0],
		Reserved: amounts[1],
		Frozen:   amounts[2],
	}, nil
}

func decodeUint128(dec *scale.Decoder) (*big.Int, error) {
	lo, _, err := scale.DecodeUint64(dec)
	if err != nil {
		return nil, err
	}
	hi, _, err := scale.DecodeUint64(dec)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetUint64(hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(lo)), nil
}

func zeroBalance() ports.AccountBalance {
	return ports.AccountBalance{
		Free:     new(big.Int),
		Reserved: new(big.Int),
		Frozen:   new(big.Int),
	}
}
