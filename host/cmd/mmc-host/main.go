// Command mmc-host drives SDMMC controller bring-up: against the built-in
// simulator, on a target running the monitor firmware, or directly through
// /dev/mem.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
