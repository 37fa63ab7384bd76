package main

import (
	"fmt"
	"log"
	"os"

	internalcli "github.com/testme/tcm-e2e/internal/cli"
)

var version = "0.1.0"

func main() {
	app := internalcli.NewApp(version, os.Getenv)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Fatal(err)
	}
}
