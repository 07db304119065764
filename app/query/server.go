package query

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/canopy-network/postertoken/app/query/controller"
	"github.com/canopy-network/postertoken/app/query/types"
)

// NewServer builds the HTTP server for the query API.
// Use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces.
func NewServer(app *types.App, addr string) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
