package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rpggio/tabletime/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(cli.DefaultRuntime())
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
