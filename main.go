// The main package for the company-analyzer executable.
package main

import (
	"github.com/JakeFAU/company-analyzer/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
