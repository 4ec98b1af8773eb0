// Command twinctl edits a digital-twin project from the command line: system
// and technology hierarchies, technology assignments and typed connections.
package main

import (
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "twinctl:", err)
		exitFunc(1)
	}
}
