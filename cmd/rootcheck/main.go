// Command rootcheck reports roots and handles that escape the stack.
//
// Usage:
//
//	rootcheck ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/wippyai/gcroot/rootcheck"
)

func main() {
	singlechecker.Main(rootcheck.Analyzer)
}
