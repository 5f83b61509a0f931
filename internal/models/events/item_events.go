package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics the ledger publishes to.
const (
	TopicItemListed   = "item_listed"
	TopicItemCanceled = "item_canceled"
	TopicItemBought   = "item_bought"
)

// ItemListed is emitted by list and by update-price.
type ItemListed struct {
	EventID    string          `json:"event_id"`
	Asset      string          `json:"asset"`
	Item       string          `json:"item"`
	Seller     string          `json:"seller"`
	Price      decimal.Decimal `json:"price"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type ItemCanceled struct {
	EventID    string    `json:"event_id"`
	Asset      string    `json:"asset"`
	Item       string    `json:"item"`
	Seller     string    `json:"seller"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ItemBought struct {
	EventID    string          `json:"event_id"`
	Asset      string          `json:"asset"`
	Item       string          `json:"item"`
	Buyer      string          `json:"buyer"`
	Price      decimal.Decimal `json:"price"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notification pairs a payload with its topic and partition key.
type Notification struct {
	Topic string
	Key   string
	Event any
}
