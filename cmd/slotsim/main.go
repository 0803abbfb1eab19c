package main

import (
	"os"

	"github.com/aradilov/lockfree/internal/sim"
)

func main() {
	sim.Run(sim.LoadConfig(os.Args[1:]))
}
