// Package server assembles the simulator HTTP surface: session lifecycle
// endpoints, the Gmail and Slack simulators behind their prefix routes and
// middleware chains, health probes, and the optional dedicated metrics
// server.
//
// The middleware order on the simulator routes is fixed: instrumentation,
// then request logging, then session extraction, then rate limiting, then
// the handler itself. The server carries no business logic of its own.
package server
