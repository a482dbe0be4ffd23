package main

import (
	"os"

	"github.com/JonMunkholm/csvcompare/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
