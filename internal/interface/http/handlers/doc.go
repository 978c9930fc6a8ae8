// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - API key authentication for ingestion endpoints
//   - Security header middleware
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Ingestion Authentication
//
// The recognition process authenticates to the ingestion endpoints with a
// shared API key, either via the configured header or a Bearer token:
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", cfg.HTTP.APIKeys)
//	mux.Handle("POST /api/v1/ai/process-frame", auth.Middleware(ingest))
package handlers
