package main

import (
	"log"
	"os"

	"github.com/jmorenobl/soni-sub003/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server over stdio.
This lets AI agent hosts drive conversations as tool calls: process_turn, get_session, end_session, list_flows.`,
	Run: func(cmd *cobra.Command, args []string) {
		engine, logger, err := buildEngine(cmd)
		if err != nil {
			log.Fatalf("Error initializing soni: %v", err)
		}

		// Ensure logs don't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		logger.Info("starting MCP server (stdio)")

		srv := mcp.NewServer(engine)
		if err := srv.ServeStdio(); err != nil {
			logger.Error("MCP server execution failed", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
