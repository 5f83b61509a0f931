package httpapi

import (
	"errors"
	"net/http"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/ledger"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/registry"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/vault"
)

func writeLedgerError(w http.ResponseWriter, err error) {
	code := ledger.KindName(err)
	switch code {
	case "invalid_price", "price_not_met":
		writeError(w, http.StatusBadRequest, code, err.Error())
	case "not_listed":
		writeError(w, http.StatusNotFound, code, err.Error())
	case "not_owner", "not_approved":
		writeError(w, http.StatusForbidden, code, err.Error())
	case "already_listed":
		writeError(w, http.StatusConflict, code, err.Error())
	case "no_proceeds":
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	case "payout_failed", "transfer_failed":
		writeError(w, http.StatusBadGateway, code, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, vault.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownItem):
		writeError(w, http.StatusNotFound, "unknown_item", err.Error())
	case errors.Is(err, registry.ErrNotAuthorized),
		errors.Is(err, registry.ErrWrongOwner):
		writeError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, registry.ErrZeroAccount):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
