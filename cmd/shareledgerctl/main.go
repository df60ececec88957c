package main

import (
	"os"

	"github.com/timmy/shareledger/cmd/shareledgerctl/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
