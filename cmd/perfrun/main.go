package main

import (
	"fmt"
	"os"
)

// Exit codes. Exit codes of the target commands are not forwarded.
const (
	ExitSuccess = 0
	ExitError   = 2 // Configuration or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return ExitError
}
