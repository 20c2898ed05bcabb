// Package ui prints the coloured console output of the PreAid gateway:
// banner, provider table, request lines and lifecycle messages.
// All output goes to color.Output.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// Badge colors
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)
	debugBadge   = color.New(color.FgMagenta)

	// Text colors
	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)
	neonBlue    = color.New(color.FgHiCyan, color.Bold)

	// Method colors
	methodPOST   = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET    = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
	methodPUT    = color.New(color.BgHiYellow, color.FgBlack, color.Bold)
	methodDELETE = color.New(color.BgHiRed, color.FgBlack, color.Bold)
)

// Endpoint is one line of the startup route table.
type Endpoint struct {
	Method      string
	Path        string
	Description string
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS LINES
// ══════════════════════════════════════════════════════════════════════════════

// PrintInfo logs general gateway information.
// Format: [PREAID] message
func PrintInfo(msg string) {
	infoBadge.Print("[PREAID]")
	fmt.Fprint(color.Output, " ")
	infoText.Println(msg)
}

// PrintProviderTable prints the fallback order and which providers have a
// usable credential.
func PrintProviderTable(status domain.ProviderStatus) {
	w := color.Output

	infoBadge.Print("[PREAID]")
	fmt.Fprint(w, " Providers available: ")
	if status.AvailableCount > 0 {
		successText.Printf("%d", status.AvailableCount)
	} else {
		errorText.Printf("%d", status.AvailableCount)
	}
	mutedText.Printf("/%d\n", status.Total)

	for i, p := range status.Providers {
		mutedText.Printf("  %d. ", i+1)
		fmt.Fprintf(w, "%-12s ", p.Name)
		if p.Configured {
			successBadge.Println(" READY ")
		} else {
			mutedText.Println("not configured")
		}
	}

	if status.AvailableCount == 0 {
		warningBadge.Print("[WARNING]")
		warningText.Println(" No AI providers configured. Add at least one API key to the environment.")
	}
	fmt.Fprintln(w)
}

// PrintProvidersFailed prints every failure of an exhausted fallback chain.
// Format: 💀 [ALL FAILED] gemini: HTTP 503 ... | openai: ...
func PrintProvidersFailed(failures []domain.DispatchFailure) {
	w := color.Output

	fmt.Fprint(w, "💀 ")
	errorBadge.Print(" ALL FAILED ")
	for i, f := range failures {
		if i > 0 {
			mutedText.Print(" |")
		}
		fmt.Fprint(w, " ")
		errorText.Print(string(f.ProviderName))
		mutedText.Printf(": %s", truncate(f.ErrorMessage, 60))
	}
	fmt.Fprintln(w)
}

// PrintCacheHit logs a cache hit.
// Format: ⚡ CACHE HIT | key:xxxx...xxxx | 0ms
func PrintCacheHit(cacheKey string, latency time.Duration) {
	w := color.Output

	neonBlue.Print("⚡ CACHE HIT ")
	fmt.Fprint(w, "| key:")
	mutedText.Print(shortKey(cacheKey))
	fmt.Fprint(w, " | ")
	successText.Printf("%dms\n", latency.Milliseconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// PrintRequest prints one colour-coded request line.
func PrintRequest(method, path string, status int, latency time.Duration, provider string) {
	w := color.Output

	mutedText.Printf("%s ", time.Now().Format("15:04:05"))

	printMethodBadge(method)
	fmt.Fprint(w, " ")

	fmt.Fprintf(w, "%-24s ", truncate(path, 24))

	printStatusBadge(status)
	fmt.Fprint(w, " ")

	printLatency(latency)

	if provider != "" {
		fmt.Fprint(w, " ")
		accentText.Print(provider)
	}

	fmt.Fprintln(w)
}

func printMethodBadge(method string) {
	switch method {
	case "POST":
		methodPOST.Printf(" %s ", method)
	case "GET":
		methodGET.Printf(" %s ", method)
	case "PUT":
		methodPUT.Printf(" %s ", method)
	case "DELETE":
		methodDELETE.Printf(" %s ", method)
	default:
		debugBadge.Printf(" %s ", method)
	}
}

func printStatusBadge(status int) {
	switch {
	case status >= 200 && status < 300:
		successBadge.Printf(" %d ", status)
	case status >= 300 && status < 400:
		infoBadge.Printf(" %d ", status)
	case status >= 400 && status < 500:
		warningBadge.Printf(" %d ", status)
	default:
		errorBadge.Printf(" %d ", status)
	}
}

// printLatency colours provider latency.
// Green: < 2s, Yellow: < 8s, Red: >= 8s
func printLatency(latency time.Duration) {
	ms := latency.Milliseconds()
	latencyStr := fmt.Sprintf("%6dms", ms)

	switch {
	case latency < 2*time.Second:
		successText.Print(latencyStr)
	case latency < 8*time.Second:
		warningText.Print(latencyStr)
	default:
		errorText.Print(latencyStr)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UTILITY FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// shortKey returns xxxx...xxxx for long keys.
func shortKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// truncate shortens s to maxLen runes, ending with "..." when cut.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// ══════════════════════════════════════════════════════════════════════════════
// STARTUP MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// PrintStartupInfo prints the listen address and the route table.
func PrintStartupInfo(host string, port int, endpoints []Endpoint) {
	w := color.Output

	infoBadge.Print("[PREAID]")
	fmt.Fprint(w, " Server starting on ")
	neonBlue.Printf("http://%s:%d\n", host, port)
	fmt.Fprintln(w)

	printEndpoints(endpoints)
}

func printEndpoints(endpoints []Endpoint) {
	w := color.Output

	pathWidth := 0
	for _, e := range endpoints {
		if len(e.Path) > pathWidth {
			pathWidth = len(e.Path)
		}
	}

	mutedText.Println("  ┌──────────────────────────────────────────────────────────")
	for _, e := range endpoints {
		mutedText.Print("  │ ")
		printMethodBadge(e.Method)
		fmt.Fprintf(w, "%*s %-*s  ", 6-len(e.Method), "", pathWidth, e.Path)
		mutedText.Println(e.Description)
	}
	mutedText.Println("  └──────────────────────────────────────────────────────────")
	fmt.Fprintln(w)
}

// PrintShutdown prints a styled shutdown message.
func PrintShutdown() {
	fmt.Fprintln(color.Output)
	warningBadge.Print("[SHUTDOWN]")
	warningText.Println(" Graceful shutdown initiated...")
}

// PrintGoodbye prints a styled goodbye message.
func PrintGoodbye() {
	successBadge.Print(" OK ")
	fmt.Fprint(color.Output, " ")
	successText.Println("Server stopped. Stay safe! 👋")
}
