// Package handlers contains the health checks and middleware shared by the
// HTTP server.
//
// Checks registered with AddCheck gate readiness; AddOptionalCheck is for
// dependencies the API can run without, such as the ranking cache:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("database", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//	checker.AddCheck("queue", handlers.NewQueueCheck(jobs))
//
// API keys are stored as bcrypt hashes produced by HashKey.
package handlers
