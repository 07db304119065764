package controller

import (
	"encoding/json"
	"net/http"

	"github.com/canopy-network/postertoken/app/query/types"
	"github.com/gorilla/mux"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
// The API is read-only, so any origin may call it.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/tokens", c.HandleTokens).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{name}", c.HandleToken).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{name}/balances", c.HandleTokenBalances).Methods(http.MethodGet)

	r.HandleFunc("/accounts/{address}", c.HandleAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{address}/balances", c.HandleAccountBalances).Methods(http.MethodGet)

	r.HandleFunc("/transactions/{hash}", c.HandleTransaction).Methods(http.MethodGet)

	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
