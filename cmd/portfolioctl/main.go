package main

import (
	"context"
	"fmt"
	"os"

	"portfolio-functions/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DefaultDeps()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
