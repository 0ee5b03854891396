package main

import (
	"os"

	"github.com/slighter12/calc-mcp-go/cli"
)

func main() {
	os.Exit(cli.Execute())
}
