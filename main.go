// The main package for the autocache-warmer executable.
package main

import (
	"github.com/JakeFAU/autocache-warmer/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
