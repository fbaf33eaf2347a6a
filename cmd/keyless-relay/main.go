// Command keyless-relay classifies RF remote button presses into short, long,
// and double gestures and pulses the relay configured for each.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
