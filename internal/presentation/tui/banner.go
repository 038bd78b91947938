package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Soni.
func PrintBanner() {
	p := termenv.ColorProfile()
	s1 := termenv.String("  ____              _ ").Foreground(p.Color("#38bdf8"))
	s2 := termenv.String(" / ___|  ___  _ __ (_)").Foreground(p.Color("#60a5fa"))
	s3 := termenv.String(" \\___ \\ / _ \\| '_ \\| |").Foreground(p.Color("#818cf8"))
	s4 := termenv.String("  ___) | (_) | | | | |").Foreground(p.Color("#a78bfa"))
	s5 := termenv.String(" |____/ \\___/|_| |_|_|").Foreground(p.Color("#c084fc"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println()
}
