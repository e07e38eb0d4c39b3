// Command pipelinectl is a terminal client for the sales pipeline. It talks
// to the CRM backend directly with the service token.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, promptConfirm).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
