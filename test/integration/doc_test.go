// Package integration_test provides end-to-end integration tests for the tandem library.
//
// These tests verify read/write routing behavior with real database connections.
//
// # Running Integration Tests
//
// Integration tests are skipped by default when using -short flag:
//
//	go test -short ./...           # Skips integration tests
//	go test ./test/integration/... # Runs integration tests
//
// # SQLite Tests
//
// Routing integration tests use SQLite in-memory databases, which require
// the go-sqlite3 driver:
//
//	go get github.com/mattn/go-sqlite3
//
// # PostgreSQL Tests
//
// PostgreSQL integration tests require Docker and use testcontainers to spin
// up real instances. The replica container is an independent instance rather
// than a streaming replica; tests verify which pool each statement lands on.
package integration_test
