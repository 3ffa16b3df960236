package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/derj90/ai-trading-manager-clean/cmd/trademgr/cmd"
)

func main() {
	// Optional .env for local runs; ignore when absent.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
