package main

import (
	"os"

	"github.com/firefly-engineering/onyx/cmd"
	"github.com/firefly-engineering/onyx/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
