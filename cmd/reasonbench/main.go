package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Evaluation ran and met expectations
	ExitEvalFailed = 1 // Evaluation ran but tasks failed or accuracy fell short
	ExitError      = 2 // Configuration or runtime error
)

// EvalFailureError indicates that the evaluation ran to completion, but
// tasks failed or accuracy fell below the requested threshold.
type EvalFailureError struct {
	Message string
}

func (e *EvalFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var evalErr *EvalFailureError
		if errors.As(err, &evalErr) {
			os.Exit(ExitEvalFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
