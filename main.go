package main

import (
	"os"

	"github.com/ellavondegurechaff/retaildash/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(cmd.Execute(version, commit))
}
