package calls

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/spacemeshos/go-scale"
)

const (
	// DefaultBalancesPalletIndex is the index of the Balances pallet in the
	// substrate node template runtime.
	DefaultBalancesPalletIndex = 4
	// DefaultTokenDecimals ...
	DefaultTokenDecimals = 12

	transferAllowDeathCallIndex = 0
	transferKeepAliveCallIndex  = 3

	systemPalletIndex     = 0
	remarkCallIndex       = 0
	multiAddressIDVariant = 0

	maxRemarkLen = 1 << 20
	// max number of characters of a remark shown in its description.
	maxDescriptionLen = 32
)

var (
	// ErrInvalidDestination ...
	ErrInvalidDestination = errors.New("invalid destination address")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNullRemark ...
	ErrNullRemark = errors.New("remark must not be null")
	// ErrInvalidCallData ...
	ErrInvalidCallData = errors.New("invalid call data")
)

// Call is a SCALE encoded runtime call with a human readable description.
type Call struct {
	data        []byte
	description string
}

func (c *Call) SignableBytes() ([]byte, error) {
	return append([]byte{}, c.data...), nil
}

func (c *Call) Description() string {
	return c.description
}

func (c *Call) Hex() string {
	return "0x" + hex.EncodeToString(c.data)
}

type TransferOpts struct {
	Dest   string
	Amount string
	// Decimals defaults to DefaultTokenDecimals if zero.
	Decimals uint8
	// PalletIndex defaults to DefaultBalancesPalletIndex if zero.
	PalletIndex uint8
	// KeepAlive selects transfer_keep_alive over transfer_allow_death.
	KeepAlive bool
}

func (o TransferOpts) validate() error {
	if len(strings.TrimSpace(o.Dest)) <= 0 {
		return ErrInvalidDestination
	}
	if len(strings.TrimSpace(o.Amount)) <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NewTransfer returns a Balances transfer of a decimal amount of tokens to
// an SS58 address.
func NewTransfer(opts TransferOpts) (*Call, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	dest, _, err := wallet.DecodeSS58(strings.TrimSpace(opts.Dest))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDestination, err)
	}
	if len(dest) != 32 {
		return nil, fmt.Errorf(
			"%w: account id must be 32 bytes, got %d", ErrInvalidDestination, len(dest),
		)
	}

	decimals := opts.Decimals
	if decimals == 0 {
		decimals = DefaultTokenDecimals
	}
	amount, err := ParseAmount(opts.Amount, decimals)
	if err != nil {
		return nil, err
	}

	palletIndex := opts.PalletIndex
	if palletIndex == 0 {
		palletIndex = DefaultBalancesPalletIndex
	}
	callIndex := byte(transferAllowDeathCallIndex)
	if opts.KeepAlive {
		callIndex = transferKeepAliveCallIndex
	}

	buf := &bytes.Buffer{}
	enc := scale.NewEncoder(buf)
	if _, err := scale.EncodeByteArray(enc, []byte{palletIndex, callIndex}); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByte(enc, multiAddressIDVariant); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, dest); err != nil {
		return nil, err
	}
	if _, err := EncodeCompactU128(enc, amount); err != nil {
		return nil, err
	}

	return &Call{
		data: buf.Bytes(),
		description: fmt.Sprintf(
			"transfer %s to %s", strings.TrimSpace(opts.Amount), strings.TrimSpace(opts.Dest),
		),
	}, nil
}

// ParseAmount converts a decimal amount of tokens into the integer amount of
// its smallest unit.
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, err)
	}
	if !value.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}

	units := value.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf(
			"%w: more than %d decimal places", ErrInvalidAmount, decimals,
		)
	}
	n := units.BigInt()
	if n.Cmp(maxU128) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, ErrCompactOverflow)
	}
	return n, nil
}

// FormatAmount converts an integer amount of the smallest unit into its
// decimal amount of tokens.
func FormatAmount(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -int32(decimals)).String()
}

// NewRemark returns a System.remark call carrying the given text.
func NewRemark(remark string) (*Call, error) {
	if len(remark) <= 0 {
		return nil, ErrNullRemark
	}

	buf := &bytes.Buffer{}
	enc := scale.NewEncoder(buf)
	if _, err := scale.EncodeByteArray(
		enc, []byte{systemPalletIndex, remarkCallIndex},
	); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteSliceWithLimit(
		enc, []byte(remark), maxRemarkLen,
	); err != nil {
		return nil, err
	}

	description := remark
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		description = string([]rune(description)[:maxDescriptionLen]) + "..."
	}
	return &Call{buf.Bytes(), fmt.Sprintf("remark %q", description)}, nil
}

// NewRawCall returns a call from its hex encoding, with or without 0x
// prefix. The first two bytes are the pallet and call indexes.
func NewRawCall(hexCall, label string) (*Call, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexCall), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCallData, err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCallData)
	}

	description := strings.TrimSpace(label)
	if len(description) <= 0 {
		description = fmt.Sprintf("call %d.%d", data[0], data[1])
	}
	return &Call{data, description}, nil
}
