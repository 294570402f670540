package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filedepot/filedepot/cmd/service"
)

func main() {
	root := &cobra.Command{
		Use:   "filedepot",
		Short: "filedepot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("empty command")
		},
	}

	root.AddCommand(service.NewCommand(), service.NewProcessCommand(), service.NewBootstrapCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
