package main

import (
	"fmt"
	"os"

	"doc-chat/cmd/docchat/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
