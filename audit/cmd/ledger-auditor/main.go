package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/audit"
	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/ledger"
)

func main() {
	// Define CLI flags
	var (
		ledgerDir    = flag.String("ledger-dir", "", "Directory holding bid ledger log files")
		auctionInput = flag.String("auction", "", "Auction JSON (file path or inline JSON)")
		outcomeInput = flag.String("outcome", "", "Reported outcome JSON (file path or inline JSON)")
		outputFormat = flag.String("format", "text", "Output format: text or json")
		help         = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	// Show help
	if *help {
		showUsage()
		os.Exit(0)
	}

	if *ledgerDir == "" || *auctionInput == "" || *outcomeInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: All three inputs are required (--ledger-dir, --auction, --outcome)\n")
		os.Exit(1)
	}

	auctionJSON, err := readJSONInput(*auctionInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading auction: %v\n", err)
		os.Exit(2)
	}

	outcomeJSON, err := readJSONInput(*outcomeInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading outcome: %v\n", err)
		os.Exit(2)
	}

	input, err := buildAuditInput(*ledgerDir, auctionJSON, outcomeJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building audit input: %v\n", err)
		os.Exit(2)
	}

	result, err := audit.VerifyAuction(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Bid Ledger Auditor")
	fmt.Println()
	fmt.Println("Replays a bid ledger and checks the reported auction outcome against it.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ledger-auditor --ledger-dir <dir> --auction <json> --outcome <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --ledger-dir <dir>     Directory holding the <auction_id>.log ledger files")
	fmt.Println("  --auction <json>       Auction record (file path or inline JSON)")
	fmt.Println("  --outcome <json>       Reported outcome (file path or inline JSON)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --format <text|json>   Output format (default: text)")
	fmt.Println("  --help                 Show this help message")
	fmt.Println()
	fmt.Println("Outcome Format:")
	fmt.Println("  {")
	fmt.Println("    \"winner_id\": \"bidder_a\",         // or \"\" if no winner")
	fmt.Println("    \"final_price\": \"12500.00\",       // or null if no winner")
	fmt.Println("    \"settlement\": { ... },             // optional, as emitted on settlement_created")
	fmt.Println("    \"integrity_hash\": \"ab34...\"      // required when settlement is present")
	fmt.Println("  }")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Audit passed")
	fmt.Println("  1 - Audit failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readJSONInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	// Treat as inline JSON
	return []byte(input), nil
}

type reportedOutcome struct {
	WinnerID      string           `json:"winner_id"`
	FinalPrice    *decimal.Decimal `json:"final_price"`
	Settlement    *core.Settlement `json:"settlement,omitempty"`
	IntegrityHash string           `json:"integrity_hash,omitempty"`
}

func buildAuditInput(dir string, auctionJSON, outcomeJSON []byte) (*audit.Input, error) {
	var auction core.Auction
	if err := json.Unmarshal(auctionJSON, &auction); err != nil {
		return nil, fmt.Errorf("parse auction: %w", err)
	}
	if auction.ID == "" {
		return nil, fmt.Errorf("auction is missing an id")
	}

	var outcome reportedOutcome
	if err := json.Unmarshal(outcomeJSON, &outcome); err != nil {
		return nil, fmt.Errorf("parse outcome: %w", err)
	}
	if outcome.Settlement != nil && outcome.IntegrityHash == "" {
		return nil, fmt.Errorf("outcome has a settlement but no integrity_hash")
	}

	fl, err := ledger.NewFileLedger(dir)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer fl.Close()

	records, err := fl.Records(auction.ID)
	if err != nil {
		return nil, fmt.Errorf("read ledger for auction %s: %w", auction.ID, err)
	}

	return &audit.Input{
		Auction:          &auction,
		Records:          records,
		ReportedWinnerID: outcome.WinnerID,
		ReportedPrice:    outcome.FinalPrice,
		Settlement:       outcome.Settlement,
		IntegrityHash:    outcome.IntegrityHash,
	}, nil
}

func outputText(result *audit.Result) {
	fmt.Println("Bid Ledger Auditor")
	fmt.Println("==================")
	fmt.Println()

	fmt.Println("Summary:")
	fmt.Printf("  Chain Valid:   %v\n", result.ChainValid)
	fmt.Printf("  Winner Valid:  %v\n", result.WinnerValid)
	fmt.Printf("  Price Valid:   %v\n", result.PriceValid)
	fmt.Printf("  Hash Valid:    %v\n", result.HashValid)

	if len(result.Details) > 0 {
		fmt.Println()
		fmt.Println("Details:")
		for _, detail := range result.Details {
			fmt.Printf("  - %s\n", detail)
		}
	}

	fmt.Println()
	fmt.Println("==================")
	if result.IsValid() {
		fmt.Println("AUDIT: ✓ PASSED")
	} else {
		fmt.Println("AUDIT: ✗ FAILED")
	}
}

func outputJSON(result *audit.Result) {
	output := map[string]any{
		"valid":        result.IsValid(),
		"chain_valid":  result.ChainValid,
		"winner_valid": result.WinnerValid,
		"price_valid":  result.PriceValid,
		"hash_valid":   result.HashValid,
		"details":      result.Details,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
