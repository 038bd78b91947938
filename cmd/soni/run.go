package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmorenobl/soni-sub003/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive conversation",
	Long:  `Starts a chat session against the flows in the flows directory. Type /start <flow> to begin a flow, /cancel to stop one, and exit to quit.`,
	Run: func(cmd *cobra.Command, args []string) {
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		engine, _, err := buildEngine(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		render := func(s string) string { return s }
		if interactive {
			tui.PrintBanner()
			fmt.Printf("Session: %s\n", sessionID)
			fmt.Printf("Flows:   %s\n\n", strings.Join(engine.Flows(), ", "))
			if r := tui.NewRenderer(); r != nil {
				render = func(s string) string {
					out, err := r(s)
					if err != nil {
						return s
					}
					return strings.TrimRight(out, "\n")
				}
			}
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			if interactive {
				fmt.Print("> ")
			}
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				fmt.Println("Bye!")
				break
			}

			reply, err := engine.ProcessTurn(cmd.Context(), sessionID, text)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			if reply != "" {
				fmt.Println(render(reply))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session id to resume (default: a fresh one)")

	// Make 'run' the default if no command is provided
	rootCmd.Run = runCmd.Run
}
