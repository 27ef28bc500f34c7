package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"library-lending/library"
)

const defaultHistoryLength = 20

// interpreter executes line-oriented circulation commands against a
// LendingService and writes human-readable results to out.
type interpreter struct {
	svc    *library.LendingService
	ledger *library.Ledger
	out    io.Writer
	p      *message.Printer
}

func newInterpreter(svc *library.LendingService, ledger *library.Ledger, out io.Writer) *interpreter {
	return &interpreter{
		svc:    svc,
		ledger: ledger,
		out:    out,
		p:      message.NewPrinter(language.English),
	}
}

// run reads commands from r until EOF, "exit" or "end". With prompt set it
// prints "> " before each command; with echo set it repeats each command so
// script output reads as a transcript.
func (in *interpreter) run(r io.Reader, prompt, echo bool) error {
	sc := bufio.NewScanner(r)
	for {
		if prompt {
			fmt.Fprint(in.out, "\n> ")
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if echo {
			fmt.Fprintf(in.out, "> %s\n", line)
		}
		if !in.execute(line) {
			return nil
		}
	}
	return sc.Err()
}

// execute runs a single command line. It reports false when the session
// should end.
func (in *interpreter) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "stock":
		in.handleStock(args)
	case "enroll":
		in.handleEnroll(args)
	case "organization":
		in.handleAddOrganization(args)
	case "checkout":
		in.handleCheckout(args)
	case "return":
		in.handleReturn(args)
	case "pay":
		in.handlePay(args)
	case "balance":
		in.handleBalance(args)
	case "materials":
		in.handleListMaterials()
	case "users":
		in.handleListUsers()
	case "organizations":
		in.handleListOrganizations()
	case "types":
		printTypes(in.out, in.svc.Types())
	case "history":
		in.handleHistory(args)
	case "help":
		printHelp(in.out)
	case "exit", "end":
		fmt.Fprintln(in.out, "Goodbye!")
		return false
	default:
		fmt.Fprintf(in.out, "Unknown command %q. Type 'help' for the list of commands.\n", cmd)
	}
	return true
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w, "  Stock:       stock <material-id> <type>, types")
	fmt.Fprintln(w, "  Members:     enroll <user-id> <organization>, organization <name>")
	fmt.Fprintln(w, "  Circulation: checkout <user-id> <material-id>, return <user-id> <material-id>")
	fmt.Fprintln(w, "  Fines:       pay <amount> <organization>, balance <organization>")
	fmt.Fprintln(w, "  Listings:    materials, users, organizations, history [n]")
	fmt.Fprintln(w, "  System:      help, exit")
}

func (in *interpreter) handleStock(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(in.out, "Usage: stock <material-id> <type>")
		return
	}
	id, ok := in.parseID("material ID", args[0])
	if !ok {
		return
	}
	if err := in.svc.StockMaterial(id, args[1]); err != nil {
		fmt.Fprintf(in.out, "Error stocking material: %v\n", err)
		return
	}
	fmt.Fprintf(in.out, "Stocked material %d (%s).\n", id, args[1])
}

func (in *interpreter) handleEnroll(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(in.out, "Usage: enroll <user-id> <organization>")
		return
	}
	id, ok := in.parseID("user ID", args[0])
	if !ok {
		return
	}
	org := strings.Join(args[1:], " ")
	if err := in.svc.EnrollUser(id, org); err != nil {
		fmt.Fprintf(in.out, "Error enrolling user: %v\n", err)
		return
	}
	fmt.Fprintf(in.out, "Enrolled user %d with '%s'.\n", id, org)
}

func (in *interpreter) handleAddOrganization(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(in.out, "Usage: organization <name>")
		return
	}
	name := strings.Join(args, " ")
	if err := in.svc.AddOrganization(name); err != nil {
		fmt.Fprintf(in.out, "Error adding organization: %v\n", err)
		return
	}
	fmt.Fprintf(in.out, "Added organization '%s'.\n", name)
}

func (in *interpreter) handleCheckout(args []string) {
	userID, materialID, ok := in.parsePair(args, "checkout")
	if !ok {
		return
	}
	if err := in.svc.Checkout(userID, materialID); err != nil {
		fmt.Fprintf(in.out, "Error checking out material: %v\n", err)
		return
	}
	fmt.Fprintf(in.out, "Material %d checked out to user %d.\n", materialID, userID)
}

func (in *interpreter) handleReturn(args []string) {
	userID, materialID, ok := in.parsePair(args, "return")
	if !ok {
		return
	}
	cost, err := in.svc.ReturnMaterial(userID, materialID)
	if err != nil {
		fmt.Fprintf(in.out, "Error returning material: %v\n", err)
		return
	}
	if cost == 0 {
		fmt.Fprintf(in.out, "Material %d returned by user %d.\n", materialID, userID)
		return
	}
	user, _ := in.svc.User(userID)
	fmt.Fprintf(in.out, "Material %d returned by user %d, %d days late: fine of %s charged to '%s'.\n",
		materialID, userID, in.lateDays(materialID, cost), in.amount(cost), user.Organization)
}

// lateDays recovers the number of late days from the charged cost.
func (in *interpreter) lateDays(materialID, cost int) int {
	m, ok := in.svc.Material(materialID)
	if !ok {
		return 0
	}
	for _, t := range in.svc.Types() {
		if t.Name == m.Type && t.DailyFineRate > 0 {
			return cost / t.DailyFineRate
		}
	}
	return 0
}

func (in *interpreter) handlePay(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(in.out, "Usage: pay <amount> <organization>")
		return
	}
	amount, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(in.out, "Invalid amount: %s\n", args[0])
		return
	}
	org := strings.Join(args[1:], " ")
	if err := in.svc.PayFee(org, amount); err != nil {
		fmt.Fprintf(in.out, "Error paying fee: %v\n", err)
		return
	}
	balance, _ := in.svc.FineBalance(org)
	fmt.Fprintf(in.out, "Paid %s for '%s'; remaining balance %s.\n", in.amount(amount), org, in.amount(balance))
}

func (in *interpreter) handleBalance(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(in.out, "Usage: balance <organization>")
		return
	}
	org := strings.Join(args, " ")
	balance, ok := in.svc.FineBalance(org)
	if !ok {
		fmt.Fprintf(in.out, "Unknown organization '%s'.\n", org)
		return
	}
	fmt.Fprintf(in.out, "'%s' owes %s.\n", org, in.amount(balance))
}

func (in *interpreter) handleListMaterials() {
	materials := in.svc.Materials()
	if len(materials) == 0 {
		fmt.Fprintln(in.out, "No materials in stock.")
		return
	}

	fmt.Fprintf(in.out, "%-6s %-12s %-20s %s\n", "ID", "Type", "Status", "Fine Due")
	fmt.Fprintln(in.out, strings.Repeat("-", 50))
	for _, m := range materials {
		status := "Available"
		switch {
		case m.Overdue:
			status = fmt.Sprintf("OVERDUE (%d days)", m.DaysCheckedOut)
		case !m.Available:
			status = fmt.Sprintf("Out (%d days)", m.DaysCheckedOut)
		}
		fmt.Fprintf(in.out, "%-6d %-12s %-20s %s\n", m.ID, truncateString(m.Type, 12), status, in.amount(m.OverdueCost))
	}
}

func (in *interpreter) handleListUsers() {
	users := in.svc.Users()
	if len(users) == 0 {
		fmt.Fprintln(in.out, "No users enrolled.")
		return
	}

	fmt.Fprintf(in.out, "%-6s %-30s %s\n", "ID", "Organization", "Held Materials")
	fmt.Fprintln(in.out, strings.Repeat("-", 60))
	for _, u := range users {
		held := "None"
		if len(u.Held) > 0 {
			ids := make([]string, len(u.Held))
			for i, id := range u.Held {
				ids[i] = strconv.Itoa(id)
			}
			held = strings.Join(ids, ", ")
		}
		fmt.Fprintf(in.out, "%-6d %-30s %s\n", u.ID, truncateString(u.Organization, 30), held)
	}
}

func (in *interpreter) handleListOrganizations() {
	orgs := in.svc.Organizations()
	if len(orgs) == 0 {
		fmt.Fprintln(in.out, "No organizations registered.")
		return
	}

	fmt.Fprintf(in.out, "%-6s %-40s %-10s %s\n", "ID", "Name", "Members", "Balance")
	fmt.Fprintln(in.out, strings.Repeat("-", 70))
	for _, o := range orgs {
		fmt.Fprintf(in.out, "%-6d %-40s %-10d %s\n", o.ID, truncateString(o.Name, 40), len(o.Members), in.amount(o.FineBalance))
	}
}

func (in *interpreter) handleHistory(args []string) {
	if in.ledger == nil {
		fmt.Fprintln(in.out, "No ledger attached.")
		return
	}
	limit := defaultHistoryLength
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(in.out, "Invalid entry count: %s\n", args[0])
			return
		}
		limit = n
	}
	entries, err := in.ledger.History(library.HistoryQuery{Limit: limit})
	if err != nil {
		fmt.Fprintf(in.out, "Error: %v\n", err)
		return
	}
	printHistory(in.out, entries)
}

// amount formats a fine with thousands separators.
func (in *interpreter) amount(n int) string {
	return in.p.Sprintf("%d", n)
}

func (in *interpreter) parsePair(args []string, cmd string) (int, int, bool) {
	if len(args) != 2 {
		fmt.Fprintf(in.out, "Usage: %s <user-id> <material-id>\n", cmd)
		return 0, 0, false
	}
	userID, ok := in.parseID("user ID", args[0])
	if !ok {
		return 0, 0, false
	}
	materialID, ok := in.parseID("material ID", args[1])
	if !ok {
		return 0, 0, false
	}
	return userID, materialID, true
}

func (in *interpreter) parseID(what, s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(in.out, "Invalid %s: %s\n", what, s)
		return 0, false
	}
	return id, true
}

func printTypes(w io.Writer, types []library.MaterialType) {
	fmt.Fprintf(w, "%-12s %-16s %s\n", "Type", "Loan Period", "Daily Fine")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, t := range types {
		fmt.Fprintf(w, "%-12s %-16s %d\n", truncateString(t.Name, 12), fmt.Sprintf("%d weeks", t.OverdueThresholdWeeks), t.DailyFineRate)
	}
}

func printHistory(w io.Writer, entries []library.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Ledger is empty.")
		return
	}
	fmt.Fprintf(w, "%-5s %-20s %-22s %-6s %-6s %-8s %s\n", "Seq", "Time", "Event", "User", "Item", "Amount", "Organization")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, e := range entries {
		user, item := "-", "-"
		if e.UserID.Valid {
			user = strconv.FormatInt(e.UserID.Int64, 10)
		}
		if e.MaterialID.Valid {
			item = strconv.FormatInt(e.MaterialID.Int64, 10)
		}
		fmt.Fprintf(w, "%-5d %-20s %-22s %-6s %-6s %-8d %s\n",
			e.Seq, e.OccurredAt().Format("2006-01-02 15:04:05"), e.Kind, user, item, e.Amount, truncateString(e.Organization, 30))
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
