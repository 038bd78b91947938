package main

import (
	"fmt"

	soni "github.com/jmorenobl/soni-sub003"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of soni",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("soni version %s\n", soni.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
