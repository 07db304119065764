package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleAccount returns an account and its nonce.
func (c *Controller) HandleAccount(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	account, err := c.App.Store.GetAccount(r.Context(), address)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		c.App.Logger.Error("Get account failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// HandleAccountBalances lists an account's balances ordered by token.
// An unknown address simply holds nothing.
func (c *Controller) HandleAccountBalances(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balances, err := c.App.Store.ListAccountBalances(r.Context(), address)
	if err != nil {
		c.App.Logger.Error("List account balances failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, paginate(balances, func(b ledger.Balance) string { return b.Token }, page))
}
