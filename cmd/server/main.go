package main

import (
	"fmt"
	"os"

	"glowdesk/backend/internal"
)

func main() {
	run := internal.Run
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		run = internal.Healthcheck
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
