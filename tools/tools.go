//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed via `go install` and never imported by the
// service; swag appears in go.mod only as an indirect dependency of
// http-swagger.
package tools

// Development tools (install via `go install`):
//
// swag - Swagger doc generation for the annotated HTTP handlers
//   Install: go install github.com/swaggo/swag/cmd/swag@v1.16.4
//   Usage: swag init -g cmd/server/main.go -o docs
