package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleTokens lists tokens ordered by name.
func (c *Controller) HandleTokens(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := c.App.Store.ListTokens(r.Context())
	if err != nil {
		c.App.Logger.Error("List tokens failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, paginate(tokens, func(t ledger.Token) string { return t.Name }, page))
}

// HandleToken returns one token.
func (c *Controller) HandleToken(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	token, err := c.App.Store.GetToken(r.Context(), name)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		c.App.Logger.Error("Get token failed", zap.String("token", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// HandleTokenBalances lists holders of a token ordered by account.
func (c *Controller) HandleTokenBalances(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := c.App.Store.GetToken(ctx, name); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	balances, err := c.App.Store.ListTokenBalances(ctx, name)
	if err != nil {
		c.App.Logger.Error("List token balances failed", zap.String("token", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, paginate(balances, func(b ledger.Balance) string { return b.Account }, page))
}
