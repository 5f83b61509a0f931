// Package leveldb keeps the marketplace mappings in an embedded goleveldb
// database.
//
// Key layout:
//
//	0x00 "VERSION"                      -> uint32 big endian schema version
//	'L' uvarint(len(asset)) asset item  -> JSON listing (active listings only)
//	'P' account                         -> decimal string (non-zero balances only)
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/txbuf"
)

const currentVersion = 2

const (
	prefixListing  = 'L'
	prefixProceeds = 'P'
)

var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

var (
	ErrIncompatibleVersion = errors.New("leveldb store: incompatible database version")
	errTxClosed            = errors.New("leveldb store: unit already finished")
)

// Store is a LedgerStore over a goleveldb database. Commits are written as a
// single synced batch.
type Store struct {
	mu sync.Mutex // serializes commits
	db *goleveldb.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := goleveldb.OpenFile(path, &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open database, tagging an empty one with the current
// schema version and refusing any other version.
func New(db *goleveldb.DB) (*Store, error) {
	value, err := db.Get(versionKey, nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, currentVersion)
		if err := db.Put(versionKey, buf, nil); err != nil {
			return nil, fmt.Errorf("write version: %w", err)
		}
		return &Store{db: db}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if len(value) != 4 || binary.BigEndian.Uint32(value) != currentVersion {
		return nil, ErrIncompatibleVersion
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	return &tx{store: s, buf: txbuf.New[string, []byte]()}, nil
}

// listingKey length-prefixes the asset so that no pair of identifiers can
// collide, whatever bytes they contain.
func listingKey(key models.ListingKey) []byte {
	k := make([]byte, 0, 1+binary.MaxVarintLen64+len(key.Asset)+len(key.Item))
	k = append(k, prefixListing)
	k = binary.AppendUvarint(k, uint64(len(key.Asset)))
	k = append(k, key.Asset...)
	return append(k, key.Item...)
}

func proceedsKey(account models.Account) []byte {
	return append([]byte{prefixProceeds}, account.String()...)
}

type tx struct {
	store  *Store
	buf    *txbuf.Buffer[string, []byte]
	closed bool
}

// get reads through the unit's buffer; a nil result means absent.
func (t *tx) get(key []byte) ([]byte, error) {
	if t.closed {
		return nil, errTxClosed
	}
	if v, deleted, found := t.buf.Get(string(key)); found {
		if deleted {
			return nil, nil
		}
		return v, nil
	}
	v, err := t.store.db.Get(key, nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (t *tx) Listing(ctx context.Context, key models.ListingKey) (models.Listing, error) {
	raw, err := t.get(listingKey(key))
	if err != nil {
		return models.Listing{}, err
	}
	if raw == nil {
		return models.NotListed(), nil
	}
	var listing models.Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return models.Listing{}, fmt.Errorf("decode listing %s: %w", key, err)
	}
	return listing, nil
}

func (t *tx) PutListing(ctx context.Context, key models.ListingKey, listing models.Listing) error {
	if t.closed {
		return errTxClosed
	}
	if !listing.IsListed() {
		t.buf.Delete(string(listingKey(key)))
		return nil
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", key, err)
	}
	t.buf.Put(string(listingKey(key)), raw)
	return nil
}

func (t *tx) DeleteListing(ctx context.Context, key models.ListingKey) error {
	if t.closed {
		return errTxClosed
	}
	t.buf.Delete(string(listingKey(key)))
	return nil
}

func (t *tx) Proceeds(ctx context.Context, account models.Account) (decimal.Decimal, error) {
	raw, err := t.get(proceedsKey(account))
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode proceeds %s: %w", account, err)
	}
	return amount, nil
}

func (t *tx) SetProceeds(ctx context.Context, account models.Account, amount decimal.Decimal) error {
	if t.closed {
		return errTxClosed
	}
	if amount.IsZero() {
		t.buf.Delete(string(proceedsKey(account)))
		return nil
	}
	t.buf.Put(string(proceedsKey(account)), []byte(amount.String()))
	return nil
}

func (t *tx) Savepoint(ctx context.Context) (int, error) {
	if t.closed {
		return 0, errTxClosed
	}
	return t.buf.Savepoint(), nil
}

func (t *tx) RollbackTo(ctx context.Context, savepoint int) error {
	if t.closed {
		return errTxClosed
	}
	t.buf.RollbackTo(savepoint)
	return nil
}

func (t *tx) Commit() error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true
	if t.buf.Len() == 0 {
		return nil
	}

	batch := new(goleveldb.Batch)
	t.buf.Each(func(key string, value []byte, deleted bool) {
		if deleted {
			batch.Delete([]byte(key))
			return
		}
		batch.Put([]byte(key), value)
	})

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.db.Write(batch, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.buf.Reset()
	return nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
