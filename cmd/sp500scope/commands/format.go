package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common formatting utilities
// Every command prints through these so output stays uniform.
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled block
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// decisionOrder is the display order for decision distributions
var decisionOrder = []contracts.Decision{
	contracts.DecisionStrongBuy,
	contracts.DecisionBuySmall,
	contracts.DecisionHold,
	contracts.DecisionReduce,
	contracts.DecisionSell,
	contracts.DecisionRejected,
	contracts.DecisionError,
}

// PrintDecisions prints a decision distribution in a fixed order
func PrintDecisions(counts map[string]int) {
	for _, d := range decisionOrder {
		if n, ok := counts[string(d)]; ok {
			PrintKeyValue(string(d), fmt.Sprintf("%d", n), 28)
		}
	}
}

// formatFloat renders an optional metric
func formatFloat(v *float64, precision int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", precision, *v)
}

// formatCap renders a market cap in billions
func formatCap(v float64) string {
	return fmt.Sprintf("$%.1fB", v/1e9)
}
