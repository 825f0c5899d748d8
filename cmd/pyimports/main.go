package main

import (
	"os"

	"pyimports/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
