package app

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/pkg/organization"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Propagate X-Organization-Id header into context for downstream services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			orgIdHeader := req.Header.Get("X-Organization-Id")
			ctx := req.Context()

			if orgIdHeader != "" {
				orgId, err := strconv.ParseInt(orgIdHeader, 10, 64)
				if err != nil {
					log.Debugf("invalid organization ID header: %s", orgIdHeader)
					http.Error(w, "invalid organization ID", http.StatusBadRequest)
					return
				}
				ctx = organization.WithOrganization(ctx, orgId)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
