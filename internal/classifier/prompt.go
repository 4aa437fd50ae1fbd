package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

// SystemInstruction frames every remote classification request.
const SystemInstruction = "You categorise personal finance transactions for a budgeting app. " +
	"Return concise JSON only. Prefer categories that already exist " +
	"and be consistent with prior assignments."

// BuildPrompt renders the user prompt: existing categories, labelled
// examples and the transaction to classify.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("The budgeting app currently has the following categories: ")
	b.WriteString(categorySection(req.Categories))
	b.WriteString(".\n")

	b.WriteString("Here are previously labelled transactions (use them as few-shot learning examples):\n")
	if len(req.Examples) == 0 {
		b.WriteString("(no prior examples)\n")
	}
	for _, ex := range req.Examples {
		parts := describe(ex.Transaction)
		parts = append(parts, "Category: "+ex.Category)
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("\n")
	}

	b.WriteString("\nClassify the following transaction. If no category fits, suggest a concise new one.\n")
	parts := describe(req.Transaction)
	parts = append(parts, "Occurred On: "+req.Transaction.OccurredOn)
	fmt.Fprintf(&b, "Transaction: %s\n\n", strings.Join(parts, "; "))

	b.WriteString(`Respond with strictly valid JSON: {"category": "<name>", "confidence": <number between 0 and 1>}`)
	return b.String()
}

func categorySection(names []string) string {
	set := make(map[string]bool)
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	if len(set) == 0 {
		return "(no existing categories)"
	}
	unique := make([]string, 0, len(set))
	for n := range set {
		unique = append(unique, n)
	}
	sort.Strings(unique)
	return strings.Join(unique, ", ")
}

func describe(t domain.Transaction) []string {
	desc := t.Description
	if desc == "" {
		desc = "-"
	}
	parts := []string{"Description: " + desc, "Amount: " + t.Amount.String()}
	if t.Counterparty != "" {
		parts = append(parts, "Counterparty: "+t.Counterparty)
	}
	if acct := t.Account(); acct != "" {
		parts = append(parts, "Account: "+acct)
	}
	if t.Reference != "" {
		parts = append(parts, "Reference: "+t.Reference)
	}
	return parts
}
