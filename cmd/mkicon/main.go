// mkicon generates a 256×256 app icon PNG from the shared icon package.
// Usage: go run ./cmd/mkicon <output.png>
package main

import (
	"fmt"
	"os"

	"github.com/Mavwarf/metronome/internal/icon"
	"github.com/Mavwarf/metronome/internal/paths"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mkicon <output.png>")
		os.Exit(1)
	}
	data, err := icon.PNG(256)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := paths.AtomicWrite(os.Args[1], data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
