package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

var ErrInvalidAmount = errors.New("invalid ether amount")

// ToWei converts a decimal ether amount to wei exactly. Amounts finer than
// one wei are rejected rather than rounded.
func ToWei(ether string) (*big.Int, error) {
	ether = strings.TrimSpace(ether)
	amount, ok := new(big.Rat).SetString(ether)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, ether)
	}
	amount.Mul(amount, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !amount.IsInt() {
		return nil, fmt.Errorf("%w: %q has more than 18 decimals", ErrInvalidAmount, ether)
	}
	return new(big.Int).Set(amount.Num()), nil
}
