package main

import (
	"io"
	"os"

	"churn-insights/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := cli.Execute(version, args, stdout, stderr); err != nil {
		return 1
	}
	return 0
}
