package transfer

import (
	"errors"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
)

const (
	// NativeDecimals is the precision of the chain's native asset
	NativeDecimals = 18
	// TokenDecimals is the precision of bridged asset contracts
	TokenDecimals = 8
)

// Intent is a user's request to move an amount of one asset to a recipient
type Intent struct {
	RecipientUserID string `json:"recipient_user_id" validate:"required,uuid"`
	Memo            string `json:"memo"`
	Amount          string `json:"amount" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the intent's fields. It does no network activity.
func (i Intent) Validate() error {
	err := validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apperrors.ValidationError(fe.Field(), "is required")
		case "uuid":
			return apperrors.ValidationError(fe.Field(), "must be a user id")
		default:
			return apperrors.ValidationError(fe.Field(), "is invalid")
		}
	}
	return apperrors.BadRequestError(err, "invalid transfer")
}

// ToOnChain converts a human readable amount to its integer on-chain value.
// Amounts below 1e-decimals or with more fractional digits than decimals are rejected.
func ToOnChain(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, apperrors.ValidationError("amount", "must be a number")
	}
	if d.Sign() <= 0 {
		return nil, apperrors.ValidationError("amount", "must be positive")
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		if shifted.LessThan(decimal.NewFromInt(1)) {
			return nil, apperrors.ValidationError("amount", "is below the minimum of "+MinimumAmount(decimals).String())
		}
		return nil, apperrors.ValidationError("amount", "has too many decimal places")
	}
	return shifted.BigInt(), nil
}

// MinimumAmount is the smallest transferable amount at the given precision
func MinimumAmount(decimals int32) decimal.Decimal {
	return decimal.New(1, -decimals)
}

// Path is the contract write a transfer dispatches to
type Path interface {
	Kind() string
}

// NativePath releases native value through the bridge contract
type NativePath struct {
	Value *big.Int
}

// Kind implements Path
func (NativePath) Kind() string { return "native" }

// TokenPath calls transferWithExtra on an asset contract
type TokenPath struct {
	Contract common.Address
	Amount   *big.Int
}

// Kind implements Path
func (TokenPath) Kind() string { return "token" }
