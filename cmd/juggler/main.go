package main

import (
	"fmt"
	"os"

	"github.com/sheerbytes/juggler/internal/cli/backup"
	"github.com/sheerbytes/juggler/internal/termio"
)

const (
	version = "v0.1.0"
	banner  = `
   _                   _
  (_)_   _  __ _  __ _| | ___ _ __
  | | | | |/ _' |/ _' | |/ _ \ '__|
  | | |_| | (_| | (_| | |  __/ |
 _/ |\__,_|\__, |\__, |_|\___|_|
|__/       |___/ |___/
juggler v0.1.0
Concurrent backups to every destination at once.
`
)

func main() {
	termio.Init()
	args := os.Args[1:]
	if len(args) == 0 {
		printBanner()
		backup.PrintUsage(termio.Stderr())
		termio.Flush()
		os.Exit(backup.ExitUsage)
	}

	code := backup.Run(args, version)
	termio.Flush()
	os.Exit(code)
}

func printBanner() {
	fmt.Fprint(termio.Stdout(), banner)
}
