package main

import (
	"fmt"
	"os"

	"github.com/jmorenobl/soni-sub003/pkg/flows"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check flow definitions for consistency",
	Long:  `Compiles every flow in the directory and reports missing fields, duplicate step ids, and unresolved branch or call targets.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("flows")
		if !cmd.Flags().Changed("flows") && len(args) > 0 {
			dir = args[0]
		}

		defs, err := flows.LoadDir(dir)
		if err != nil {
			fmt.Printf("Error loading flows: %v\n", err)
			os.Exit(1)
		}

		set, err := flows.CompileAll(defs)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("All flows valid (%d compiled):\n", len(set.Names()))
		for _, name := range set.Names() {
			fmt.Println("- " + name)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
