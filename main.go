package main

import (
	"errors"
	"fmt"
	"os"

	"k8s-dev-loadtest/cmd"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	var exitErr *cmd.ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cmd.ExitCode(err))
}
