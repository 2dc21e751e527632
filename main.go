package main

import (
	"os"

	"github.com/matrixise/tip3-raffle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
