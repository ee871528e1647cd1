package main

import (
	"errors"
	"log"
	"os"
)

// exitCode maps the outermost error kind to a stable non-zero code.
// Cobra argument errors (unknown flag, wrong arg count) arrive as
// plain errors and share the argument-error code.
func exitCode(err error) int {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return 2
	}
	switch ce.Kind {
	case ErrArgument:
		return 2
	case ErrIO:
		return 3
	case ErrLex:
		return 4
	case ErrParse:
		return 5
	case ErrSemantic:
		return 6
	default:
		return 7
	}
}

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("wheelcc: %v", err)
		os.Exit(exitCode(err))
	}
}
