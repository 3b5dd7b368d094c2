package main

import (
	"fmt"
	"os"

	"github.com/BartekS5/ida/internal/cli"
	"github.com/BartekS5/ida/internal/config"
)

func main() {
	n, err := config.LoadEnv(".env", ".env.local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(3)
	}
	if n == 0 {
		fmt.Fprintln(os.Stderr, "No .env file found, using system environment variables")
	}

	os.Exit(cli.Execute())
}
