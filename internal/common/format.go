package common

import (
	"fmt"
	"strings"

	"metaverse-ledger-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100

	timeLayout = "2006-01-02 15:04:05"
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// HoldLines renders a hold as a title line and indented detail lines.
func HoldLines(asset models.Asset, isLast bool) []string {
	detail := BoxDetailPrefix(isLast)

	lines := []string{
		fmt.Sprintf("%s%s  %-8s %s", BoxPrefix(isLast), asset.TransactionId, asset.State(), asset.PartName),
		fmt.Sprintf("%s  buyer %s  seller %s  price %d", detail, asset.BuyerId, asset.SellerId, asset.SalePrice),
		fmt.Sprintf("%s  created %s", detail, asset.CreatedAt.Format(timeLayout)),
	}
	if asset.EnactedAt != nil {
		lines = append(lines, fmt.Sprintf("%s  enacted %s", detail, asset.EnactedAt.Format(timeLayout)))
	}
	if asset.FinishedAt != nil {
		lines = append(lines, fmt.Sprintf("%s  finished %s", detail, asset.FinishedAt.Format(timeLayout)))
	}
	if asset.BuyerEndingBalance >= 0 {
		lines = append(lines, fmt.Sprintf("%s  buyer ending balance %d", detail, asset.BuyerEndingBalance))
	}
	return lines
}

// BalanceLine renders a balance snapshot as a single aligned row.
func BalanceLine(snapshot models.BalanceSnapshot) string {
	return fmt.Sprintf("%-40s %14s  %-13s %s", snapshot.PrincipalId, snapshot.Balance.StringFixed(0), snapshot.Source, snapshot.UpdatedAt.Format(timeLayout))
}
