package main

import (
	"fmt"
	"os"

	"github.com/topicast/topicast/internal/cli"
	"github.com/topicast/topicast/pkg/logger"
)

func main() {
	defer logger.Sync()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
