package main

import (
	"fmt"
	"os"

	"github.com/strandpine/warden/internal/middleware"
)

// Generates an operator key pair: the plain key is handed to the
// operator, the hash goes into OPERATOR_KEY_HASH.
func main() {
	key, hash, err := middleware.GenerateOperatorKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate operator key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Operator key (give to the operator, shown once):\n  %s\n\n", key)
	fmt.Printf("Key hash (set as OPERATOR_KEY_HASH):\n  %s\n", hash)
}
