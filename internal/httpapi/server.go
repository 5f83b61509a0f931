// Package httpapi exposes the marketplace ledger over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

// AccountHeader carries the caller identity on every mutating request.
const AccountHeader = "X-Account"

// Marketplace is the ledger surface served by the API.
type Marketplace interface {
	List(ctx context.Context, key models.ListingKey, price decimal.Decimal, caller models.Account) error
	Cancel(ctx context.Context, key models.ListingKey, caller models.Account) error
	Buy(ctx context.Context, key models.ListingKey, buyer models.Account, paid decimal.Decimal) error
	UpdatePrice(ctx context.Context, key models.ListingKey, newPrice decimal.Decimal, caller models.Account) error
	WithdrawProceeds(ctx context.Context, caller models.Account) (decimal.Decimal, error)
	GetListing(ctx context.Context, key models.ListingKey) (models.Listing, error)
	GetProceeds(ctx context.Context, account models.Account) (decimal.Decimal, error)
}

// Payments accepts the value attached to a purchase and returns it when the
// purchase does not settle.
type Payments interface {
	Escrow(ctx context.Context, payer models.Account, amount decimal.Decimal) error
	Refund(ctx context.Context, payer models.Account, amount decimal.Decimal) error
}

// Assets and Wallets back the development routes.
type Assets interface {
	Mint(asset string, owner models.Account) (models.ListingKey, error)
	Approve(ctx context.Context, caller models.Account, key models.ListingKey, spender models.Account) error
	OwnerOf(ctx context.Context, key models.ListingKey) (models.Account, error)
}

type Wallets interface {
	Deposit(account models.Account, amount decimal.Decimal) error
	Balance(account models.Account) decimal.Decimal
}

type Server struct {
	router   *httprouter.Router
	logger   *zap.Logger
	addr     string
	ledger   Marketplace
	payments Payments

	metrics http.Handler
	assets  Assets
	wallets Wallets
}

type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithDevRoutes enables minting, approvals and wallet deposits over HTTP.
func WithDevRoutes(assets Assets, wallets Wallets) Option {
	return func(s *Server) {
		s.assets = assets
		s.wallets = wallets
	}
}

func New(ledger Marketplace, payments Payments, logger *zap.Logger, addr string, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		router:   httprouter.New(),
		logger:   logger,
		addr:     addr,
		ledger:   ledger,
		payments: payments,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/v1/listings", s.handleList)
	s.router.GET("/v1/listings/:asset/:item", s.handleGetListing)
	s.router.PUT("/v1/listings/:asset/:item", s.handleUpdatePrice)
	s.router.DELETE("/v1/listings/:asset/:item", s.handleCancel)
	s.router.POST("/v1/listings/:asset/:item/buy", s.handleBuy)

	s.router.GET("/v1/proceeds/:account", s.handleGetProceeds)
	s.router.POST("/v1/proceeds/withdraw", s.handleWithdraw)

	if s.metrics != nil {
		s.router.Handler(http.MethodGet, "/metrics", s.metrics)
	}

	if s.assets != nil && s.wallets != nil {
		s.router.POST("/dev/assets/:asset", s.handleMint)
		s.router.POST("/dev/assets/:asset/:item/approve", s.handleApprove)
		s.router.GET("/dev/assets/:asset/:item/owner", s.handleOwner)
		s.router.POST("/dev/wallets/:account/deposit", s.handleDeposit)
		s.router.GET("/dev/wallets/:account", s.handleWallet)
	}

	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route_not_found", "no route for "+r.Method+" "+r.URL.Path)
	})
	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.logger.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
