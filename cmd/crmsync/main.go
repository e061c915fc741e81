package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xavierca1/crm-dwh-sync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "crmsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
