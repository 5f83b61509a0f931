package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Account identifies a participant: a seller, a buyer or the marketplace itself.
type Account string

// ZeroAccount is the seller recorded on a sentinel listing.
const ZeroAccount Account = ""

func (a Account) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Account) String() string {
	return string(a)
}

// ListingKey is the composite (asset, item) key of a listing.
type ListingKey struct {
	Asset string `json:"asset"`
	Item  string `json:"item"`
}

func (k ListingKey) String() string {
	return k.Asset + "/" + k.Item
}

// Validate reports whether both halves of the key are present and free of NUL.
func (k ListingKey) Validate() error {
	if strings.TrimSpace(k.Asset) == "" || strings.TrimSpace(k.Item) == "" {
		return fmt.Errorf("listing key %q: asset and item are required", k.String())
	}
	if strings.ContainsRune(k.Asset, 0) || strings.ContainsRune(k.Item, 0) {
		return fmt.Errorf("listing key %q: NUL is not allowed", k.String())
	}
	return nil
}

// Listing is an active sale offer. A zero price marks the sentinel (not listed).
type Listing struct {
	Price  decimal.Decimal `json:"price"`  // smallest currency unit
	Seller Account         `json:"seller"` // account that listed the item
}

// NotListed returns the sentinel record used for every key that is not for sale.
func NotListed() Listing {
	return Listing{Price: decimal.Zero, Seller: ZeroAccount}
}

// IsListed reports whether the record represents an active offer.
func (l Listing) IsListed() bool {
	return l.Price.Sign() > 0
}
