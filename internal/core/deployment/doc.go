// Package deployment provides pure functions for deployment planning.
//
// This package contains the functional core logic for honeypot deployments:
// resource naming, service start ordering, start-path planning, and the
// pure half of the port/name/path conflict checks. All functions are pure
// (no I/O, no side effects); the imperative shell executes their results.
package deployment
