package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"library-lending/library"
)

const (
	ledgerFile = "circulation.db"
	seedFile   = "seed.yaml"
)

func main() {
	path := seedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// Start every import from an empty ledger
	fmt.Println("Cleaning up existing ledger files...")
	for _, file := range []string{ledgerFile, ledgerFile + "-shm", ledgerFile + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Ledger cleanup complete.")

	// os.Exit skips deferred calls, so importSeed closes the ledger itself.
	if err := importSeed(path, ledgerFile, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// importSeed applies the seed at seedPath to a fresh service journaled to
// ledgerPath, reporting each row and the resulting inventory to out.
func importSeed(seedPath, ledgerPath string, out io.Writer) error {
	seed, err := library.ReadSeedFile(seedPath)
	if err != nil {
		return fmt.Errorf("reading seed: %w", err)
	}

	cfg, err := library.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	if cfg.Types, err = seed.Registry(); err != nil {
		return fmt.Errorf("registering material types: %w", err)
	}

	ledger, err := library.OpenLedger(ledgerPath)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	defer ledger.Close()

	svc, err := library.NewLendingService(cfg, library.WithJournal(ledger))
	if err != nil {
		return fmt.Errorf("creating lending service: %w", err)
	}

	fmt.Fprintf(out, "Importing %s...\n", seedPath)
	successCount, errorCount := 0, 0
	for _, r := range seed.Apply(svc) {
		switch r.Kind {
		case "organization":
			fmt.Fprintf(out, "Organization '%s'... ", r.Name)
		case "material":
			fmt.Fprintf(out, "Material %d (%s)... ", r.ID, r.Name)
		default:
			fmt.Fprintf(out, "User %d in '%s'... ", r.ID, r.Name)
		}
		if r.Err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", r.Err)
			errorCount++
			continue
		}
		fmt.Fprintln(out, "SUCCESS")
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d rows\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if err := ledger.Verify(); err != nil {
		return fmt.Errorf("ledger check failed: %w", err)
	}

	if successCount == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nMaterials in stock:")
	fmt.Fprintf(out, "%-6s %-12s\n", "ID", "Type")
	fmt.Fprintln(out, strings.Repeat("-", 20))
	for _, m := range svc.Materials() {
		fmt.Fprintf(out, "%-6d %-12.12s\n", m.ID, m.Type)
	}

	fmt.Fprintln(out, "\nOrganizations:")
	fmt.Fprintf(out, "%-6s %-40s %s\n", "ID", "Name", "Members")
	fmt.Fprintln(out, strings.Repeat("-", 55))
	for _, o := range svc.Organizations() {
		fmt.Fprintf(out, "%-6d %-40.40s %d\n", o.ID, o.Name, len(o.Members))
	}
	return nil
}
