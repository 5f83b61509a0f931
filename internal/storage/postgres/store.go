package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

var errTxClosed = errors.New("postgres store: unit already finished")

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	asset  TEXT    NOT NULL,
	item   TEXT    NOT NULL,
	price  NUMERIC NOT NULL CHECK (price > 0),
	seller TEXT    NOT NULL,
	PRIMARY KEY (asset, item)
);
CREATE TABLE IF NOT EXISTS proceeds (
	account TEXT    PRIMARY KEY,
	amount  NUMERIC NOT NULL CHECK (amount >= 0)
);`

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(dsn string) (*PostgresLedgerStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresLedgerStore(db), nil
}

// Migrate creates the listings and proceeds tables when missing.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

// Begin opens a serializable database transaction. Rows read through the unit
// are locked FOR UPDATE so ledgers in other processes queue behind it.
func (p *PostgresLedgerStore) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return &postgresTx{dbTx: dbTx}, nil
}

type postgresTx struct {
	dbTx       *sql.Tx
	savepoints int
	closed     bool
}

func (t *postgresTx) Listing(ctx context.Context, key models.ListingKey) (models.Listing, error) {
	if t.closed {
		return models.Listing{}, errTxClosed
	}
	const query = `SELECT price, seller FROM listings WHERE asset = $1 AND item = $2 FOR UPDATE`

	var (
		listing models.Listing
		seller  string
	)
	err := t.dbTx.QueryRowContext(ctx, query, key.Asset, key.Item).Scan(&listing.Price, &seller)
	if err == sql.ErrNoRows {
		return models.NotListed(), nil
	}
	if err != nil {
		return models.Listing{}, err
	}
	listing.Seller = models.Account(seller)
	return listing, nil
}

func (t *postgresTx) PutListing(ctx context.Context, key models.ListingKey, listing models.Listing) error {
	if !listing.IsListed() {
		return t.DeleteListing(ctx, key)
	}
	if t.closed {
		return errTxClosed
	}
	const query = `INSERT INTO listings (asset, item, price, seller) VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset, item) DO UPDATE SET price = EXCLUDED.price, seller = EXCLUDED.seller`

	_, err := t.dbTx.ExecContext(ctx, query, key.Asset, key.Item, listing.Price, listing.Seller.String())
	return err
}

func (t *postgresTx) DeleteListing(ctx context.Context, key models.ListingKey) error {
	if t.closed {
		return errTxClosed
	}
	const query = `DELETE FROM listings WHERE asset = $1 AND item = $2`

	_, err := t.dbTx.ExecContext(ctx, query, key.Asset, key.Item)
	return err
}

func (t *postgresTx) Proceeds(ctx context.Context, account models.Account) (decimal.Decimal, error) {
	if t.closed {
		return decimal.Zero, errTxClosed
	}
	const query = `SELECT amount FROM proceeds WHERE account = $1 FOR UPDATE`

	var amount decimal.Decimal
	err := t.dbTx.QueryRowContext(ctx, query, account.String()).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (t *postgresTx) SetProceeds(ctx context.Context, account models.Account, amount decimal.Decimal) error {
	if t.closed {
		return errTxClosed
	}
	const query = `INSERT INTO proceeds (account, amount) VALUES ($1, $2)
	ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`

	_, err := t.dbTx.ExecContext(ctx, query, account.String(), amount)
	return err
}

func savepointName(n int) string {
	return pq.QuoteIdentifier(fmt.Sprintf("ledger_sp_%d", n))
}

func (t *postgresTx) Savepoint(ctx context.Context) (int, error) {
	if t.closed {
		return 0, errTxClosed
	}
	n := t.savepoints
	if _, err := t.dbTx.ExecContext(ctx, "SAVEPOINT "+savepointName(n)); err != nil {
		return 0, err
	}
	t.savepoints++
	return n, nil
}

func (t *postgresTx) RollbackTo(ctx context.Context, savepoint int) error {
	if t.closed {
		return errTxClosed
	}
	_, err := t.dbTx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName(savepoint))
	return err
}

func (t *postgresTx) Commit() error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true
	return t.dbTx.Commit()
}

func (t *postgresTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.dbTx.Rollback()
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
