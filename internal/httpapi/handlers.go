package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

type listRequest struct {
	Asset string          `json:"asset"`
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
}

type ListingResponse struct {
	Asset  string          `json:"asset"`
	Item   string          `json:"item"`
	Price  decimal.Decimal `json:"price"`
	Seller string          `json:"seller"`
	Listed bool            `json:"listed"`
}

type BalanceResponse struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

type OwnerResponse struct {
	Asset string `json:"asset"`
	Item  string `json:"item"`
	Owner string `json:"owner"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func listingResponse(key models.ListingKey, listing models.Listing) ListingResponse {
	return ListingResponse{
		Asset:  key.Asset,
		Item:   key.Item,
		Price:  listing.Price,
		Seller: listing.Seller.String(),
		Listed: listing.IsListed(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req listRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key := models.ListingKey{Asset: req.Asset, Item: req.Item}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.ledger.List(r.Context(), key, req.Price, caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse(key, models.Listing{Price: req.Price, Seller: caller}))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}
	listing, err := s.ledger.GetListing(r.Context(), key)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(key, listing))
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}

	if err := s.ledger.UpdatePrice(r.Context(), key, req.Price, caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(key, models.Listing{Price: req.Price, Seller: caller}))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}

	if err := s.ledger.Cancel(r.Context(), key, caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(key, models.NotListed()))
}

// handleBuy escrows the attached amount from the buyer's wallet, settles the
// purchase and hands the escrow back if the ledger rejects it.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	buyer, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}

	if err := s.payments.Escrow(r.Context(), buyer, req.Amount); err != nil {
		writePaymentError(w, err)
		return
	}
	if err := s.ledger.Buy(r.Context(), key, buyer, req.Amount); err != nil {
		if refundErr := s.payments.Refund(r.Context(), buyer, req.Amount); refundErr != nil {
			s.logger.Error("refund failed",
				zap.String("buyer", buyer.String()),
				zap.Stringer("amount", req.Amount),
				zap.Error(refundErr),
			)
		}
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(key, models.NotListed()))
}

func (s *Server) handleGetProceeds(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account := models.Account(ps.ByName("account"))
	amount, err := s.ledger.GetProceeds(r.Context(), account)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Account: account.String(), Amount: amount})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	amount, err := s.ledger.WithdrawProceeds(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Account: caller.String(), Amount: amount})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	key, err := s.assets.Mint(ps.ByName("asset"), caller)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, OwnerResponse{Asset: key.Asset, Item: key.Item, Owner: caller.String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}
	if err := s.assets.Approve(r.Context(), caller, key, models.Account(req.Spender)); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	key, ok := pathKey(w, ps)
	if !ok {
		return
	}
	owner, err := s.assets.OwnerOf(r.Context(), key)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OwnerResponse{Asset: key.Asset, Item: key.Item, Owner: owner.String()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account := models.Account(ps.ByName("account"))
	if err := s.wallets.Deposit(account, req.Amount); err != nil {
		writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Account: account.String(), Amount: s.wallets.Balance(account)})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	account := models.Account(ps.ByName("account"))
	writeJSON(w, http.StatusOK, BalanceResponse{Account: account.String(), Amount: s.wallets.Balance(account)})
}

func pathKey(w http.ResponseWriter, ps httprouter.Params) (models.ListingKey, bool) {
	key := models.ListingKey{Asset: ps.ByName("asset"), Item: ps.ByName("item")}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return models.ListingKey{}, false
	}
	return key, true
}

func requireCaller(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	caller := models.Account(strings.TrimSpace(r.Header.Get(AccountHeader)))
	if caller.IsZero() {
		writeError(w, http.StatusUnauthorized, "missing_account", AccountHeader+" header is required")
		return models.ZeroAccount, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "invalid request body"
		if errors.As(err, &syntaxErr) {
			msg = "malformed JSON"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
