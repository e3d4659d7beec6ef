package main

import (
	"os"

	"github.com/wonny/sfmlstats/cmd/sfmlstats/commands"
)

// main is the entry point for the sfmlstats CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/sfmlstats [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
