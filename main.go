package main

import (
	"os"

	"lmo-cli/cli"
)

func main() {
	os.Exit(cli.Execute())
}
