// Package vault is an in-process value transfer mechanism: account wallets
// plus the marketplace's custody of attached payments that were credited to
// sellers but not yet paid out.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

var (
	ErrInvalidAmount       = errors.New("vault: amount must be a non-negative whole number")
	ErrInsufficientFunds   = errors.New("vault: insufficient funds")
	ErrInsufficientCustody = errors.New("vault: insufficient custody")
)

// PayoutHook runs after amount reached payee's wallet. An error reverts the
// payout, like a reverting receive function.
type PayoutHook func(ctx context.Context, payee models.Account, amount decimal.Decimal) error

type Vault struct {
	mu      sync.Mutex
	wallets map[models.Account]decimal.Decimal
	custody decimal.Decimal

	onPayout PayoutHook
}

func New() *Vault {
	return &Vault{
		wallets: make(map[models.Account]decimal.Decimal),
		custody: decimal.Zero,
	}
}

// OnPayout installs hook for every later payout. Pass nil to remove it.
func (v *Vault) OnPayout(hook PayoutHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onPayout = hook
}

// Deposit adds amount to account's wallet.
func (v *Vault) Deposit(account models.Account, amount decimal.Decimal) error {
	if !models.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wallets[account] = v.balance(account).Add(amount)
	return nil
}

func (v *Vault) Balance(account models.Account) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance(account)
}

// Custody returns the funds held by the marketplace.
func (v *Vault) Custody() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody
}

func (v *Vault) balance(account models.Account) decimal.Decimal {
	if b, ok := v.wallets[account]; ok {
		return b
	}
	return decimal.Zero
}

// Escrow moves a payment attached to a purchase from payer's wallet into custody.
func (v *Vault) Escrow(ctx context.Context, payer models.Account, amount decimal.Decimal) error {
	if !models.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	balance := v.balance(payer)
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, payer, balance, amount)
	}
	v.wallets[payer] = balance.Sub(amount)
	v.custody = v.custody.Add(amount)
	return nil
}

// Refund returns an escrowed payment to payer when the purchase did not settle.
func (v *Vault) Refund(ctx context.Context, payer models.Account, amount decimal.Decimal) error {
	return v.release(payer, amount)
}

// PayTo pays amount out of custody into payee's wallet. The amount leaves
// custody before the payout hook runs but reaches the wallet only once the
// hook accepts it, so the hook can never spend a payout it then rejects.
func (v *Vault) PayTo(ctx context.Context, payee models.Account, amount decimal.Decimal) error {
	if !models.ValidAmount(amount) {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	if v.custody.LessThan(amount) {
		custody := v.custody
		v.mu.Unlock()
		return fmt.Errorf("%w: holding %s, releasing %s", ErrInsufficientCustody, custody, amount)
	}
	v.custody = v.custody.Sub(amount)
	hook := v.onPayout
	v.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, payee, amount); err != nil {
			v.mu.Lock()
			v.custody = v.custody.Add(amount)
			v.mu.Unlock()
			return fmt.Errorf("payee rejected payout: %w", err)
		}
	}

	v.mu.Lock()
	v.wallets[payee] = v.balance(payee).Add(amount)
	v.mu.Unlock()
	return nil
}

func (v *Vault) release(to models.Account, amount decimal.Decimal) error {
	if !models.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.custody.LessThan(amount) {
		return fmt.Errorf("%w: holding %s, releasing %s", ErrInsufficientCustody, v.custody, amount)
	}
	v.custody = v.custody.Sub(amount)
	v.wallets[to] = v.balance(to).Add(amount)
	return nil
}

var _ interfaces.ValueTransfer = (*Vault)(nil)
