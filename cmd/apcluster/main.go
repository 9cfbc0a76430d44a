// Command apcluster clusters items by affinity propagation over a sparse
// similarity matrix, builds that matrix from documents, and serves the
// clustering engine over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
