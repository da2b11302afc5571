package main

import (
	"fmt"
	"os"

	"github.com/plantpulse/plantpulse/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands silence cobra's own error printing, report once here.
		fmt.Fprintln(os.Stderr, "plantpulse:", err)
		os.Exit(1)
	}
}
