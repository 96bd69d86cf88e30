//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the recordkeeper project using Mage.
//
// Usage:
//
//	mage build          Compile keeper binary to bin/
//	mage test:all       Run all tests, including the binary tests in cmd/keeper
//	mage test:unit      Run tests in short mode (no binary build)
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write coverage.out and print per-function coverage
//	mage lint           Run go vet and golangci-lint
//	mage vet            Run go vet
//	mage fmt            Fail if any file needs gofmt
//	mage clean          Remove build artifacts
//	mage install        Install keeper to GOPATH/bin
//	mage stats          Print system sizes and per-package Go lines as JSON
package main
