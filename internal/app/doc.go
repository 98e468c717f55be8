// Package app wires the dashboard backend together: configuration,
// logging, observability, object-storage buckets, the merge pipeline,
// services, HTTP handlers and the WebSocket hub.
//
// Initialization follows a dependency injection pattern so components
// stay loosely coupled and testable:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and OpenTelemetry
//	3. Connect the raw, merged and manual storage buckets
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure and start the HTTP server
//
// The app handles SIGINT and SIGTERM for graceful shutdown and never
// calls os.Exit() directly, leaving exit control to main.
package app
