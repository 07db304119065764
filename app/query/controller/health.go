package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	resp := map[string]string{"status": "ok", "feed": "disabled"}
	if c.App.RedisClient != nil {
		resp["feed"] = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			resp["feed"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
