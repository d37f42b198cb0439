package main

import (
	"os"

	"github.com/IsaacEduardo/chat-umn/cmd/client/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
