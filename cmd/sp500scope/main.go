package main

import (
	"os"

	_ "time/tzdata" // America/New_York must resolve on hosts without zoneinfo

	"github.com/wonny/sp500scope/backend/cmd/sp500scope/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
