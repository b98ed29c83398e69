// Package server exposes the agency supervisor over HTTP.
//
// The surface is a small JSON API: agency lifecycle (start, stop, live
// state), snapshot browsing, and per-agent state plus message delivery.
// Domain sentinel errors are mapped onto HTTP status codes in one place so
// handlers stay thin.
package server
