package main

import (
	"os"

	"github.com/Iron-Ham/notifio/internal/cmd"
	"github.com/Iron-Ham/notifio/internal/ui"
)

func main() {
	if err := cmd.Execute(); err != nil {
		ui.Errorf("%v", err)
		os.Exit(1)
	}
}
