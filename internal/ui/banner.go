// Package ui prints the coloured console output of the PreAid gateway.
package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASCII ART BANNER
// ══════════════════════════════════════════════════════════════════════════════

var (
	preRows = []string{
		"██████╗ ██████╗ ███████╗",
		"██╔══██╗██╔══██╗██╔════╝",
		"██████╔╝██████╔╝█████╗  ",
		"██╔═══╝ ██╔══██╗██╔══╝  ",
		"██║     ██║  ██║███████╗",
		"╚═╝     ╚═╝  ╚═╝╚══════╝",
	}
	aidRows = []string{
		" █████╗ ██╗██████╗ ",
		"██╔══██╗██║██╔══██╗",
		"███████║██║██║  ██║",
		"██╔══██║██║██║  ██║",
		"██║  ██║██║██████╔╝",
		"╚═╝  ╚═╝╚═╝╚═════╝ ",
	}
)

// PrintBanner displays the startup banner.
func PrintBanner(version string) {
	w := color.Output

	cyan := color.New(color.FgCyan, color.Bold)
	hiCyan := color.New(color.FgHiCyan, color.Bold)
	hiRed := color.New(color.FgHiRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	white := color.New(color.FgWhite)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(w)
	cyan.Println("╔════════════════════════════════════════════════════╗")
	for i := range preRows {
		cyan.Print("║   ")
		hiCyan.Print(preRows[i])
		hiRed.Print(aidRows[i])
		fmt.Fprint(w, "      ")
		cyan.Println("║")
	}
	cyan.Println("╠════════════════════════════════════════════════════╣")

	cyan.Print("║  ")
	yellow.Print("✚ FIRST-AID ADVICE GATEWAY")
	dim.Print("  │  ")
	white.Printf("%-19s", version)
	cyan.Println("║")

	cyan.Println("╚════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}
