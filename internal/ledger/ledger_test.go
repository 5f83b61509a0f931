package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/ledger"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models/events"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/registry"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/vault"
)

const (
	marketplace = models.Account("marketplace")
	seller      = models.Account("deployer")
	buyer       = models.Account("user")
)

// 0.1 ether in wei.
var price = decimal.RequireFromString("100000000000000000")

type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Notification
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, events.Notification{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var topics []string
	for _, n := range p.sent {
		topics = append(topics, n.Topic)
	}
	return topics
}

type recordingMetrics struct {
	mu        sync.Mutex
	ops       []string
	settled   []decimal.Decimal
	withdrawn []decimal.Decimal
}

func (m *recordingMetrics) ObserveOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, operation+":"+ledger.KindName(err))
}

func (m *recordingMetrics) ObserveSettled(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = append(m.settled, amount)
}

func (m *recordingMetrics) ObserveWithdrawn(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawn = append(m.withdrawn, amount)
}

type fixture struct {
	ledger   *ledger.Ledger
	store    *memory.MemoryLedgerStore
	registry *registry.Registry
	vault    *vault.Vault
	events   *recordingPublisher
	metrics  *recordingMetrics
	key      models.ListingKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewMemoryLedgerStore(),
		registry: registry.New(),
		vault:    vault.New(),
		events:   &recordingPublisher{},
		metrics:  &recordingMetrics{},
	}
	f.ledger = ledger.NewLedger(f.store, f.registry, f.vault, marketplace,
		ledger.WithPublisher(f.events),
		ledger.WithMetrics(f.metrics),
		ledger.WithLogger(zaptest.NewLogger(t)),
	)

	key, err := f.registry.Mint("basic-nft", seller)
	require.NoError(t, err)
	f.key = key
	return f
}

func (f *fixture) approve(t *testing.T, key models.ListingKey) {
	t.Helper()
	require.NoError(t, f.registry.Approve(context.Background(), seller, key, marketplace))
}

func (f *fixture) list(t *testing.T, key models.ListingKey, amount decimal.Decimal) {
	t.Helper()
	f.approve(t, key)
	require.NoError(t, f.ledger.List(context.Background(), key, amount, seller))
}

// buy attaches paid from who's wallet the way the HTTP surface does.
func (f *fixture) buy(t *testing.T, key models.ListingKey, who models.Account, paid decimal.Decimal) error {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.vault.Deposit(who, paid))
	require.NoError(t, f.vault.Escrow(ctx, who, paid))

	err := f.ledger.Buy(ctx, key, who, paid)
	if err != nil {
		require.NoError(t, f.vault.Refund(ctx, who, paid))
	}
	return err
}

func (f *fixture) listing(t *testing.T, key models.ListingKey) models.Listing {
	t.Helper()
	listing, err := f.ledger.GetListing(context.Background(), key)
	require.NoError(t, err)
	return listing
}

func (f *fixture) proceeds(t *testing.T, account models.Account) decimal.Decimal {
	t.Helper()
	amount, err := f.ledger.GetProceeds(context.Background(), account)
	require.NoError(t, err)
	return amount
}

func (f *fixture) owner(t *testing.T, key models.ListingKey) models.Account {
	t.Helper()
	owner, err := f.registry.OwnerOf(context.Background(), key)
	require.NoError(t, err)
	return owner
}

func assertSentinel(t *testing.T, listing models.Listing) {
	t.Helper()
	assert.True(t, listing.Price.IsZero(), "price %s", listing.Price)
	assert.Equal(t, models.ZeroAccount, listing.Seller)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestListThenGetListing(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	listing := f.listing(t, f.key)
	assertDecimal(t, price, listing.Price)
	assert.Equal(t, seller, listing.Seller)
	assert.Equal(t, seller, f.owner(t, f.key), "listing does not take custody of the item")

	require.Len(t, f.events.sent, 1)
	listed, ok := f.events.sent[0].Event.(events.ItemListed)
	require.True(t, ok)
	assert.Equal(t, events.TopicItemListed, f.events.sent[0].Topic)
	assert.Equal(t, "basic-nft/0", f.events.sent[0].Key)
	assert.Equal(t, "basic-nft", listed.Asset)
	assert.Equal(t, "0", listed.Item)
	assert.Equal(t, seller.String(), listed.Seller)
	assertDecimal(t, price, listed.Price)
	assert.NotEmpty(t, listed.EventID)
}

func TestListRejectsAlreadyListed(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	for _, p := range []decimal.Decimal{price, price.Mul(decimal.NewFromInt(2)), decimal.NewFromInt(1)} {
		err := f.ledger.List(context.Background(), f.key, p, seller)
		assert.ErrorIs(t, err, ledger.ErrAlreadyListed, "price %s", p)
	}
	assertDecimal(t, price, f.listing(t, f.key).Price)
	assert.Equal(t, []string{events.TopicItemListed}, f.events.topics())
}

func TestInvalidPrice(t *testing.T) {
	invalid := []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(-1),
		decimal.RequireFromString("0.5"),
	}

	t.Run("list", func(t *testing.T) {
		f := newFixture(t)
		f.approve(t, f.key)
		for _, p := range invalid {
			err := f.ledger.List(context.Background(), f.key, p, seller)
			assert.ErrorIs(t, err, ledger.ErrInvalidPrice, "price %s", p)
		}
		assertSentinel(t, f.listing(t, f.key))
	})

	t.Run("update price", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		for _, p := range invalid {
			err := f.ledger.UpdatePrice(context.Background(), f.key, p, seller)
			assert.ErrorIs(t, err, ledger.ErrInvalidPrice, "price %s", p)
		}
		assertDecimal(t, price, f.listing(t, f.key).Price)
	})
}

func TestListRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ledger.List(ctx, f.key, price, seller)
	require.ErrorIs(t, err, ledger.ErrNotApproved)

	require.NoError(t, f.registry.Approve(ctx, seller, f.key, "someone-else"))
	err = f.ledger.List(ctx, f.key, price, seller)
	require.ErrorIs(t, err, ledger.ErrNotApproved)
	assertSentinel(t, f.listing(t, f.key))

	f.approve(t, f.key)
	require.NoError(t, f.ledger.List(ctx, f.key, price, seller))
}

func TestListRequiresOwner(t *testing.T) {
	f := newFixture(t)
	f.approve(t, f.key)

	err := f.ledger.List(context.Background(), f.key, price, buyer)
	require.ErrorIs(t, err, ledger.ErrNotOwner)

	var lerr *ledger.Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, f.key, lerr.Key)
	assert.Equal(t, buyer, lerr.Account)
	assertSentinel(t, f.listing(t, f.key))
	assert.Empty(t, f.events.sent)
}

func TestCancel(t *testing.T) {
	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		err := f.ledger.Cancel(context.Background(), f.key, seller)
		assert.ErrorIs(t, err, ledger.ErrNotListed)
	})

	t.Run("not seller", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		err := f.ledger.Cancel(context.Background(), f.key, buyer)
		assert.ErrorIs(t, err, ledger.ErrNotOwner)
		assertDecimal(t, price, f.listing(t, f.key).Price)
	})

	t.Run("resets to sentinel", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		require.NoError(t, f.ledger.Cancel(context.Background(), f.key, seller))

		assertSentinel(t, f.listing(t, f.key))
		assert.Equal(t, []string{events.TopicItemListed, events.TopicItemCanceled}, f.events.topics())
		assert.Empty(t, f.store.Listings())
	})
}

func TestBuy(t *testing.T) {
	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		err := f.buy(t, f.key, buyer, price)
		assert.ErrorIs(t, err, ledger.ErrNotListed)
		assertDecimal(t, price, f.vault.Balance(buyer))
	})

	t.Run("price not met", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)

		paid := price.Sub(decimal.NewFromInt(1))
		err := f.buy(t, f.key, buyer, paid)
		require.ErrorIs(t, err, ledger.ErrPriceNotMet)

		var lerr *ledger.Error
		require.True(t, errors.As(err, &lerr))
		assertDecimal(t, price, lerr.Price)
		assertDecimal(t, paid, lerr.Amount)

		assertDecimal(t, price, f.listing(t, f.key).Price)
		assert.True(t, f.proceeds(t, seller).IsZero())
		assert.Equal(t, seller, f.owner(t, f.key))
		assertDecimal(t, paid, f.vault.Balance(buyer))
	})

	t.Run("settles", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)

		require.NoError(t, f.buy(t, f.key, buyer, price))

		assert.Equal(t, buyer, f.owner(t, f.key))
		assertSentinel(t, f.listing(t, f.key))
		assertDecimal(t, price, f.proceeds(t, seller))
		assertDecimal(t, price, f.vault.Custody())

		approved, err := f.registry.GetApproved(context.Background(), f.key)
		require.NoError(t, err)
		assert.Equal(t, models.ZeroAccount, approved, "transfer clears the approval")

		require.Len(t, f.events.sent, 2)
		bought, ok := f.events.sent[1].Event.(events.ItemBought)
		require.True(t, ok)
		assert.Equal(t, buyer.String(), bought.Buyer)
		assertDecimal(t, price, bought.Price)
	})

	t.Run("overpayment stays with the seller", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)

		paid := price.Mul(decimal.NewFromInt(3))
		require.NoError(t, f.buy(t, f.key, buyer, paid))

		assertDecimal(t, paid, f.proceeds(t, seller))
		bought := f.events.sent[1].Event.(events.ItemBought)
		assertDecimal(t, price, bought.Price)
	})

	t.Run("buyer cannot buy twice", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		require.NoError(t, f.buy(t, f.key, buyer, price))

		err := f.buy(t, f.key, buyer, price)
		assert.ErrorIs(t, err, ledger.ErrNotListed)
		assertDecimal(t, price, f.proceeds(t, seller))
	})
}

func TestUpdatePrice(t *testing.T) {
	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		err := f.ledger.UpdatePrice(context.Background(), f.key, price, seller)
		assert.ErrorIs(t, err, ledger.ErrNotListed)
	})

	t.Run("not seller", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		err := f.ledger.UpdatePrice(context.Background(), f.key, price.Add(price), buyer)
		assert.ErrorIs(t, err, ledger.ErrNotOwner)
		assertDecimal(t, price, f.listing(t, f.key).Price)
	})

	t.Run("not seller is reported before invalid price", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		err := f.ledger.UpdatePrice(context.Background(), f.key, decimal.Zero, buyer)
		assert.ErrorIs(t, err, ledger.ErrNotOwner)
	})

	t.Run("changes only the price", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)

		newPrice := price.Mul(decimal.NewFromInt(2))
		require.NoError(t, f.ledger.UpdatePrice(context.Background(), f.key, newPrice, seller))

		listing := f.listing(t, f.key)
		assertDecimal(t, newPrice, listing.Price)
		assert.Equal(t, seller, listing.Seller)
		assert.Equal(t, []string{events.TopicItemListed, events.TopicItemListed}, f.events.topics())
	})
}

func TestWithdrawProceeds(t *testing.T) {
	t.Run("no proceeds", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.WithdrawProceeds(context.Background(), seller)
		require.ErrorIs(t, err, ledger.ErrNoProceeds)

		var lerr *ledger.Error
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, seller, lerr.Account)
	})

	t.Run("pays the whole balance", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		require.NoError(t, f.buy(t, f.key, buyer, price))
		before := f.vault.Balance(seller)

		paid, err := f.ledger.WithdrawProceeds(context.Background(), seller)
		require.NoError(t, err)

		assertDecimal(t, price, paid)
		assert.True(t, f.proceeds(t, seller).IsZero())
		assertDecimal(t, before.Add(price), f.vault.Balance(seller))
		assert.True(t, f.vault.Custody().IsZero())

		_, err = f.ledger.WithdrawProceeds(context.Background(), seller)
		assert.ErrorIs(t, err, ledger.ErrNoProceeds)
	})

	t.Run("payout failure restores the balance", func(t *testing.T) {
		f := newFixture(t)
		f.list(t, f.key, price)
		require.NoError(t, f.buy(t, f.key, buyer, price))

		refused := errors.New("receiver refuses value")
		f.vault.OnPayout(func(ctx context.Context, payee models.Account, amount decimal.Decimal) error {
			return refused
		})

		_, err := f.ledger.WithdrawProceeds(context.Background(), seller)
		require.ErrorIs(t, err, ledger.ErrPayoutFailed)
		assert.ErrorIs(t, err, refused)

		assertDecimal(t, price, f.proceeds(t, seller))
		assertDecimal(t, price, f.vault.Custody())
		assert.True(t, f.vault.Balance(seller).IsZero())
	})
}

func TestEndToEndSale(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	require.NoError(t, f.buy(t, f.key, buyer, price))

	assert.Equal(t, buyer, f.owner(t, f.key))
	assertDecimal(t, price, f.proceeds(t, seller))
	assertSentinel(t, f.listing(t, f.key))
}

func TestEndToEndUpdatePrice(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	updated := decimal.RequireFromString("200000000000000000")
	require.NoError(t, f.ledger.UpdatePrice(context.Background(), f.key, updated, seller))

	listing := f.listing(t, f.key)
	assertDecimal(t, updated, listing.Price)
	assert.Equal(t, seller, listing.Seller)
}

func TestEndToEndRelistAfterCancel(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)
	require.NoError(t, f.ledger.Cancel(context.Background(), f.key, seller))

	relisted := price.Add(decimal.NewFromInt(1))
	require.NoError(t, f.ledger.List(context.Background(), f.key, relisted, seller))
	assertDecimal(t, relisted, f.listing(t, f.key).Price)
}

func TestValueIsConserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	received := decimal.Zero

	for i := 0; i < 4; i++ {
		key, err := f.registry.Mint("basic-nft", seller)
		require.NoError(t, err)
		f.list(t, key, price)

		paid := price.Add(decimal.NewFromInt(int64(i)))
		require.NoError(t, f.buy(t, key, models.Account(fmt.Sprintf("buyer-%d", i)), paid))
		received = received.Add(paid)

		assertDecimal(t, f.vault.Custody(), f.store.TotalProceeds())
	}
	assertDecimal(t, received, f.proceeds(t, seller))

	paid, err := f.ledger.WithdrawProceeds(ctx, seller)
	require.NoError(t, err)
	assertDecimal(t, received, paid)
	assert.True(t, f.vault.Custody().IsZero())
	assert.True(t, f.store.TotalProceeds().IsZero())
}

func TestConcurrentBuysSettleOnce(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	const buyers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		settled  []models.Account
		notFound int
	)
	for i := 0; i < buyers; i++ {
		who := models.Account(fmt.Sprintf("buyer-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.ledger.Buy(context.Background(), f.key, who, price)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				settled = append(settled, who)
			case errors.Is(err, ledger.ErrNotListed):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, settled, 1)
	assert.Equal(t, buyers-1, notFound)
	assert.Equal(t, settled[0], f.owner(t, f.key))
	assertDecimal(t, price, f.proceeds(t, seller))
}

func TestTransferRejectionAbortsBuy(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	rejected := errors.New("receiver cannot hold items")
	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		return rejected
	})

	err := f.buy(t, f.key, buyer, price)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.ErrorIs(t, err, rejected)

	assertDecimal(t, price, f.listing(t, f.key).Price)
	assert.True(t, f.proceeds(t, seller).IsZero())
	assert.Equal(t, seller, f.owner(t, f.key))
	assert.True(t, f.vault.Custody().IsZero())
	assertDecimal(t, price, f.vault.Balance(buyer))
	assert.Equal(t, []string{events.TopicItemListed}, f.events.topics())
}

func TestReentrantBuyDuringTransferSeesItemSold(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	var (
		reentryErr   error
		seenProceeds decimal.Decimal
		seenListing  models.Listing
	)
	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		seenListing, _ = f.ledger.GetListing(ctx, key)
		seenProceeds, _ = f.ledger.GetProceeds(ctx, from)
		reentryErr = f.ledger.Buy(ctx, key, "attacker", price)
		return nil
	})

	require.NoError(t, f.buy(t, f.key, buyer, price))

	assert.ErrorIs(t, reentryErr, ledger.ErrNotListed)
	assertSentinel(t, seenListing)
	assertDecimal(t, price, seenProceeds)
	assert.Equal(t, buyer, f.owner(t, f.key))
	assertDecimal(t, price, f.proceeds(t, seller))
}

func TestReentrantWithdrawDuringPayoutFindsNothing(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)
	require.NoError(t, f.buy(t, f.key, buyer, price))

	var reentryErr error
	f.vault.OnPayout(func(ctx context.Context, payee models.Account, amount decimal.Decimal) error {
		_, reentryErr = f.ledger.WithdrawProceeds(ctx, payee)
		return nil
	})

	paid, err := f.ledger.WithdrawProceeds(context.Background(), seller)
	require.NoError(t, err)

	assert.ErrorIs(t, reentryErr, ledger.ErrNoProceeds)
	assertDecimal(t, price, paid)
	assertDecimal(t, price, f.vault.Balance(seller))
	assert.True(t, f.vault.Custody().IsZero())
}

func TestFailedNestedBuyRollsBackOnlyItsOwnWrites(t *testing.T) {
	f := newFixture(t)
	second, err := f.registry.Mint("basic-nft", seller)
	require.NoError(t, err)
	f.list(t, f.key, price)
	f.list(t, second, price)

	var nestedErr error
	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		if key == second {
			return errors.New("second receiver rejects")
		}
		nestedErr = f.ledger.Buy(ctx, second, "other", price)
		return nil
	})

	require.NoError(t, f.ledger.Buy(context.Background(), f.key, buyer, price))

	assert.ErrorIs(t, nestedErr, ledger.ErrTransferFailed)
	assert.Equal(t, buyer, f.owner(t, f.key))
	assertSentinel(t, f.listing(t, f.key))

	assert.Equal(t, seller, f.owner(t, second))
	assertDecimal(t, price, f.listing(t, second).Price)
	assertDecimal(t, price, f.proceeds(t, seller))

	assert.Equal(t, []string{events.TopicItemListed, events.TopicItemListed, events.TopicItemBought}, f.events.topics())
	assert.Equal(t, []string{"list:ok", "list:ok", "buy:transfer_failed", "buy:ok"}, f.metrics.ops)
	require.Len(t, f.metrics.settled, 1)
	assertDecimal(t, price, f.metrics.settled[0])
}

func TestRolledBackNestedBuyIsNotObserved(t *testing.T) {
	f := newFixture(t)
	second, err := f.registry.Mint("basic-nft", seller)
	require.NoError(t, err)
	f.list(t, f.key, price)
	f.list(t, second, price)

	var nestedErr error
	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		if key == second {
			return nil
		}
		nestedErr = f.ledger.Buy(ctx, second, to, price)
		return errors.New("first receiver rejects")
	})

	err = f.ledger.Buy(context.Background(), f.key, buyer, price)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	require.NoError(t, nestedErr)

	assertDecimal(t, price, f.listing(t, second).Price)
	assert.True(t, f.proceeds(t, seller).IsZero())
	assert.Equal(t, []string{"list:ok", "list:ok", "buy:transfer_failed"}, f.metrics.ops)
	assert.Empty(t, f.metrics.settled)
}

func TestNestedBuyCommitsWithOuterUnit(t *testing.T) {
	f := newFixture(t)
	second, err := f.registry.Mint("basic-nft", seller)
	require.NoError(t, err)
	f.list(t, f.key, price)
	f.list(t, second, price)

	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		if key == f.key {
			return f.ledger.Buy(ctx, second, to, price)
		}
		return nil
	})

	require.NoError(t, f.ledger.Buy(context.Background(), f.key, buyer, price))

	assert.Equal(t, buyer, f.owner(t, f.key))
	assert.Equal(t, buyer, f.owner(t, second))
	assertDecimal(t, price.Mul(decimal.NewFromInt(2)), f.proceeds(t, seller))

	topics := f.events.topics()
	assert.Equal(t, []string{events.TopicItemListed, events.TopicItemListed, events.TopicItemBought, events.TopicItemBought}, topics)
}

func TestReceiverPropagatingNestedRejectionIsTransferFailure(t *testing.T) {
	f := newFixture(t)
	f.list(t, f.key, price)

	f.registry.OnReceive(func(ctx context.Context, key models.ListingKey, from, to models.Account) error {
		return f.ledger.Buy(ctx, key, "attacker", price)
	})

	err := f.buy(t, f.key, buyer, price)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.Equal(t, "transfer_failed", ledger.KindName(err))

	var lerr *ledger.Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, ledger.ErrTransferFailed, lerr.Kind)

	assertDecimal(t, price, f.listing(t, f.key).Price)
	assert.True(t, f.proceeds(t, seller).IsZero())
	assert.Equal(t, seller, f.owner(t, f.key))
}
