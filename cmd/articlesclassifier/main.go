package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
)

var version = "dev"

func main() {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
