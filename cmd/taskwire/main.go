package main

import (
	"fmt"
	"os"

	"github.com/taskwire/taskwire/internal/cli"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(apierr.ExitCodeFor(err))
	}
}
