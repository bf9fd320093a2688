// Command lexdraftctl runs operator tasks against the lexdraft store.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
