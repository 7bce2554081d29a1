package main

import (
	"os"

	"github.com/koscakluka/ema-assistant/cmd/ema-assistant/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
