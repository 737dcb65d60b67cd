// Command pena runs sentence calculations from JSON files, without a server
// or a database.
package main

import (
	"os"
	"time"
	_ "time/tzdata"
)

func main() {
	if err := newRootCmd(time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}
