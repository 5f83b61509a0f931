package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"errors"
	"sync" // standard Go package for concurrency primitives like Mutex

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"                // domain models: Listing, Account
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/txbuf"
)

var errTxClosed = errors.New("memory store: unit already finished")

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Committed state lives in two maps; a unit's writes stay in its own buffers
// until Commit copies them over under the mutex.
type MemoryLedgerStore struct {
	mu       sync.Mutex                           // protects both maps
	listings map[models.ListingKey]models.Listing // active listings only
	proceeds map[models.Account]decimal.Decimal   // withdrawable balances
}

// NewMemoryLedgerStore creates and returns a new, empty MemoryLedgerStore.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		listings: make(map[models.ListingKey]models.Listing),
		proceeds: make(map[models.Account]decimal.Decimal),
	}
}

// Begin opens a unit of work over the committed maps.
func (m *MemoryLedgerStore) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	return &memoryTx{
		store:    m,
		listings: txbuf.New[models.ListingKey, models.Listing](),
		proceeds: txbuf.New[models.Account, decimal.Decimal](),
	}, nil
}

func (m *MemoryLedgerStore) Close() error {
	return nil
}

// Listings returns a copy of every active listing.
// Useful for testing, debugging, and printing ledger state.
func (m *MemoryLedgerStore) Listings() map[models.ListingKey]models.Listing {
	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	copied := make(map[models.ListingKey]models.Listing, len(m.listings))
	for k, v := range m.listings {
		copied[k] = v
	}
	return copied // return the copy so external code can't modify internal state
}

// TotalProceeds sums every committed balance.
func (m *MemoryLedgerStore) TotalProceeds() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, v := range m.proceeds {
		total = total.Add(v)
	}
	return total
}

type memoryTx struct {
	store    *MemoryLedgerStore
	listings *txbuf.Buffer[models.ListingKey, models.Listing]
	proceeds *txbuf.Buffer[models.Account, decimal.Decimal]
	marks    [][2]int
	closed   bool
}

func (t *memoryTx) Listing(ctx context.Context, key models.ListingKey) (models.Listing, error) {
	if t.closed {
		return models.Listing{}, errTxClosed
	}
	if v, deleted, found := t.listings.Get(key); found {
		if deleted {
			return models.NotListed(), nil
		}
		return v, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if v, ok := t.store.listings[key]; ok {
		return v, nil
	}
	return models.NotListed(), nil
}

func (t *memoryTx) PutListing(ctx context.Context, key models.ListingKey, listing models.Listing) error {
	if t.closed {
		return errTxClosed
	}
	t.listings.Put(key, listing)
	return nil
}

func (t *memoryTx) DeleteListing(ctx context.Context, key models.ListingKey) error {
	if t.closed {
		return errTxClosed
	}
	t.listings.Delete(key)
	return nil
}

func (t *memoryTx) Proceeds(ctx context.Context, account models.Account) (decimal.Decimal, error) {
	if t.closed {
		return decimal.Zero, errTxClosed
	}
	if v, _, found := t.proceeds.Get(account); found {
		return v, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if v, ok := t.store.proceeds[account]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (t *memoryTx) SetProceeds(ctx context.Context, account models.Account, amount decimal.Decimal) error {
	if t.closed {
		return errTxClosed
	}
	t.proceeds.Put(account, amount)
	return nil
}

func (t *memoryTx) Savepoint(ctx context.Context) (int, error) {
	if t.closed {
		return 0, errTxClosed
	}
	t.marks = append(t.marks, [2]int{t.listings.Savepoint(), t.proceeds.Savepoint()})
	return len(t.marks) - 1, nil
}

func (t *memoryTx) RollbackTo(ctx context.Context, savepoint int) error {
	if t.closed {
		return errTxClosed
	}
	if savepoint < 0 || savepoint >= len(t.marks) {
		return errors.New("memory store: unknown savepoint")
	}
	mark := t.marks[savepoint]
	t.listings.RollbackTo(mark[0])
	t.proceeds.RollbackTo(mark[1])
	t.marks = t.marks[:savepoint]
	return nil
}

// Commit copies the unit's writes into the committed maps in one critical section.
func (t *memoryTx) Commit() error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true

	t.store.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer t.store.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	t.listings.Each(func(key models.ListingKey, listing models.Listing, deleted bool) {
		if deleted || !listing.IsListed() {
			delete(t.store.listings, key)
			return
		}
		t.store.listings[key] = listing
	})
	t.proceeds.Each(func(account models.Account, amount decimal.Decimal, _ bool) {
		if amount.IsZero() {
			delete(t.store.proceeds, account)
			return
		}
		t.store.proceeds[account] = amount
	})
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.listings.Reset()
	t.proceeds.Reset()
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
