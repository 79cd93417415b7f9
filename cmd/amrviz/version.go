package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/amrviz"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of amrviz",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("amrviz version %s\n", strings.TrimSpace(amrviz.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
