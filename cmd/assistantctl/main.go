// Package main is the entry point of the academy assistant operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ashureev/academy-assistant/cmd/assistantctl/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
