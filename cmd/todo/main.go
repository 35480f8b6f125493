// Command todo manages a local to-do list stored in a JSON file.
// Usage: todo [--owner NAME] [--data FILE] <command> [args]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
