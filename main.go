package main

import (
	"github.com/joho/godotenv"

	"github.com/GenAmed/pointage/cmd"
)

func main() {
	// Deployment overrides (remote URL, API key) may come from a .env
	// next to the binary; absence is fine.
	_ = godotenv.Load()
	cmd.Execute()
}
