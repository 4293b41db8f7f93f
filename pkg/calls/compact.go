package calls

import (
	"errors"
	"math/big"

	"github.com/spacemeshos/go-scale"
)

// ErrCompactOverflow ...
var ErrCompactOverflow = errors.New("value does not fit in 128 bits")

var (
	maxSingle = big.NewInt(1<<6 - 1)
	maxTwo    = big.NewInt(1<<14 - 1)
	maxFour   = big.NewInt(1<<30 - 1)
	maxU128   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// EncodeCompactU128 writes v as a SCALE compact integer. Values are limited
// to the u128 range used by balances.
func EncodeCompactU128(e *scale.Encoder, v *big.Int) (int, error) {
	if v.Sign() < 0 || v.Cmp(maxU128) > 0 {
		return 0, ErrCompactOverflow
	}

	switch {
	case v.Cmp(maxSingle) <= 0:
		return scale.EncodeByte(e, byte(v.Uint64()<<2))
	case v.Cmp(maxTwo) <= 0:
		n := v.Uint64()<<2 | 0b01
		return scale.EncodeByteArray(e, []byte{byte(n), byte(n >> 8)})
	case v.Cmp(maxFour) <= 0:
		n := v.Uint64()<<2 | 0b10
		return scale.EncodeByteArray(e, []byte{
			byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		})
	}

	be := v.Bytes()
	buf := make([]byte, 0, len(be)+1)
	buf = append(buf, byte(len(be)-4)<<2|0b11)
	for i := len(be) - 1; i >= 0; i-- {
		buf = append(buf, be[i])
	}
	return scale.EncodeByteArray(e, buf)
}
