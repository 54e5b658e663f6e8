// Command sonarscope draws a phosphor-persistence radar scope from an
// angle/distance sensor on a serial port, a recorded log or a simulator.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sonarscope: %v\n", err)
		os.Exit(1)
	}
}
