// Package registry is an in-process asset registry with ERC-721 style
// ownership and single-spender approval. The marketplace treats it as an
// external authority; the server wires it for development networks and tests.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

var (
	ErrUnknownItem   = errors.New("registry: unknown item")
	ErrNotAuthorized = errors.New("registry: caller not authorized")
	ErrWrongOwner    = errors.New("registry: from is not the owner")
	ErrZeroAccount   = errors.New("registry: zero account")
)

// ReceiveHook runs after ownership of key moved to to. An error reverts the
// transfer, like a rejecting onERC721Received.
type ReceiveHook func(ctx context.Context, key models.ListingKey, from, to models.Account) error

type token struct {
	owner    models.Account
	approved models.Account
}

type Registry struct {
	mu     sync.Mutex
	tokens map[models.ListingKey]*token
	next   map[string]uint64 // next item id per asset

	onReceive ReceiveHook
}

func New() *Registry {
	return &Registry{
		tokens: make(map[models.ListingKey]*token),
		next:   make(map[string]uint64),
	}
}

// OnReceive installs hook for every later transfer. Pass nil to remove it.
func (r *Registry) OnReceive(hook ReceiveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReceive = hook
}

// Mint creates the next item of asset for owner. Item ids count up from 0 per asset.
func (r *Registry) Mint(asset string, owner models.Account) (models.ListingKey, error) {
	if owner.IsZero() {
		return models.ListingKey{}, ErrZeroAccount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next[asset]
	r.next[asset] = id + 1
	key := models.ListingKey{Asset: asset, Item: strconv.FormatUint(id, 10)}
	r.tokens[key] = &token{owner: owner}
	return key, nil
}

// Approve lets spender move key on the owner's behalf. A zero spender clears
// the approval.
func (r *Registry) Approve(ctx context.Context, caller models.Account, key models.ListingKey, spender models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	if t.owner != caller {
		return fmt.Errorf("%w: %s cannot approve %s", ErrNotAuthorized, caller, key)
	}
	t.approved = spender
	return nil
}

func (r *Registry) OwnerOf(ctx context.Context, key models.ListingKey) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[key]
	if !ok {
		return models.ZeroAccount, fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	return t.owner, nil
}

func (r *Registry) GetApproved(ctx context.Context, key models.ListingKey) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[key]
	if !ok {
		return models.ZeroAccount, fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	return t.approved, nil
}

// TransferFrom moves key from from to to. operator must be from itself or the
// approved spender; the approval is cleared by the move.
func (r *Registry) TransferFrom(ctx context.Context, key models.ListingKey, from, to, operator models.Account) error {
	if to.IsZero() {
		return ErrZeroAccount
	}

	r.mu.Lock()
	t, ok := r.tokens[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	if t.owner != from {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWrongOwner, key)
	}
	if operator != from && (t.approved.IsZero() || t.approved != operator) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s cannot transfer %s", ErrNotAuthorized, operator, key)
	}

	prev := *t
	t.owner = to
	t.approved = models.ZeroAccount
	hook := r.onReceive
	r.mu.Unlock()

	if hook == nil {
		return nil
	}
	// The hook runs unlocked so it may call back into the registry.
	if err := hook(ctx, key, from, to); err != nil {
		r.mu.Lock()
		*t = prev
		r.mu.Unlock()
		return fmt.Errorf("receiver rejected %s: %w", key, err)
	}
	return nil
}

var _ interfaces.AssetRegistry = (*Registry)(nil)
