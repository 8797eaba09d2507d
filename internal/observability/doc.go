// Package observability owns process metrics and HTTP request logging.
package observability
