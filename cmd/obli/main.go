// Obli transpiles programs that compute on secret values into
// constant-time Rust or Go.
//
// Usage:
//
//	# Transpile one file to Rust on stdout
//	obli transpile --input pay.obli
//
//	# Transpile to Go and write the result
//	obli transpile --input pay.obli --target go --output pay.go
//
//	# Evaluate an inline program
//	obli run --expr 'let s = secret(4); if s > 3 then s else 0'
//
//	# Validate without emitting
//	obli check --input pay.obli --full
//
//	# Build every file listed by obli.toml, then rebuild on change
//	obli build
//	obli watch
package main

import (
	"errors"
	"fmt"
	"os"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "obli: %v\n", err)
		}
		os.Exit(1)
	}
}
