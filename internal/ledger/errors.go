package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

// Error kinds. Every rejected operation returns an *Error whose Kind is one of
// these, so errors.Is(err, ErrNotListed) works on any ledger result.
var (
	ErrInvalidPrice   = errors.New("price must be above zero")
	ErrAlreadyListed  = errors.New("item already listed")
	ErrNotListed      = errors.New("item not listed")
	ErrNotOwner       = errors.New("caller is not the owner")
	ErrNotApproved    = errors.New("marketplace not approved for item")
	ErrPriceNotMet    = errors.New("price not met")
	ErrNoProceeds     = errors.New("no proceeds")
	ErrPayoutFailed   = errors.New("payout failed")
	ErrTransferFailed = errors.New("asset transfer failed")
)

// Error is a rejected ledger operation. Only the fields relevant to Kind are set.
type Error struct {
	Kind    error
	Key     models.ListingKey
	Account models.Account
	Price   decimal.Decimal
	Amount  decimal.Decimal
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Key != (models.ListingKey{}) {
		fmt.Fprintf(&b, " (asset=%s item=%s)", e.Key.Asset, e.Key.Item)
	}
	if !e.Account.IsZero() {
		fmt.Fprintf(&b, " account=%s", e.Account)
	}
	if !e.Price.IsZero() {
		fmt.Fprintf(&b, " price=%s", e.Price)
	}
	if !e.Amount.IsZero() {
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns the short identifier used in logs, metrics and HTTP bodies.
// It classifies by the outermost *Error, so a transfer that failed because a
// receiver's nested ledger call was rejected stays transfer_failed.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	var lerr *Error
	if !errors.As(err, &lerr) {
		return "internal"
	}
	switch lerr.Kind {
	case ErrInvalidPrice:
		return "invalid_price"
	case ErrAlreadyListed:
		return "already_listed"
	case ErrNotListed:
		return "not_listed"
	case ErrNotOwner:
		return "not_owner"
	case ErrNotApproved:
		return "not_approved"
	case ErrPriceNotMet:
		return "price_not_met"
	case ErrNoProceeds:
		return "no_proceeds"
	case ErrPayoutFailed:
		return "payout_failed"
	case ErrTransferFailed:
		return "transfer_failed"
	default:
		return "internal"
	}
}
