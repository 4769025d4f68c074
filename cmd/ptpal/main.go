package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/spf13/cobra"
)

func main() {
	log.SetHandler(text.New(os.Stdout))

	root := &cobra.Command{
		Use:   "ptpal",
		Short: "ptpal is a per-port PTPv2 ordinary-clock daemon",
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newQueryCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
