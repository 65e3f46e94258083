package main

import (
	"log"
	"net/http"

	httphandlers "ledgersync/internal/interfaces/http"
	"ledgersync/internal/shared/config"
	"ledgersync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth(deps.DB))

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(h))
	}

	protect("/api/users/me", deps.UserHandler.HandleMe)
	protect("/api/users/budget", deps.UserHandler.HandleBudget)
	protect("/api/transactions", deps.TransactionHandler.HandleListTransactions)
	protect("/api/transactions/sync", deps.TransactionHandler.HandleSyncAll)
	protect("/api/transactions/spending", deps.TransactionHandler.HandleSpending)
	protect("/api/transactions/{id}/star", deps.TransactionHandler.HandleStar)
	protect("/api/items", deps.ItemHandler.HandleListItems)
	protect("/api/items/{id}/deactivate", deps.ItemHandler.HandleDeactivate)
	protect("/api/items/{id}/sync", deps.ItemHandler.HandleSync)

	// Apply global middleware
	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Tracing(handler)

	if cfg.TLS.Enabled || cfg.IsProduction() {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("Security middleware enabled (HSTS + SecureCookies)")
	}

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	return handler
}
