package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleTransaction returns the recorded post event with its outcome.
func (c *Controller) HandleTransaction(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	tx, err := c.App.Store.GetTransaction(r.Context(), hash)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		c.App.Logger.Error("Get transaction failed", zap.String("hash", hash), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, tx)
}
