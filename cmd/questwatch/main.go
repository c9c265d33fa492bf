package main

import (
	"fmt"
	"os"

	"github.com/livinlefevreloca/questwatch/internal/cli"
	_ "github.com/mattn/go-sqlite3"
)

var version = "dev"

func main() {
	if err := cli.RootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "questwatch:", err)
		os.Exit(cli.ExitCode(err))
	}
}
