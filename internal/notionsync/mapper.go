package notionsync

import (
	"strings"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/money"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropAccount       = "Account"
	PropCounterparty  = "Counterparty"
	PropReference     = "Reference"
	PropCompany       = "Company"
)

// UnassignedCategory is the Category option of transactions without one.
const UnassignedCategory = "Unassigned"

// TransactionToNotionProperties maps a ledger transaction to page
// properties. categoryName is empty for unassigned transactions.
func TransactionToNotionProperties(t domain.Transaction, categoryName string) notionapi.Properties {
	if categoryName == "" {
		categoryName = UnassignedCategory
	}
	props := notionapi.Properties{
		PropDescription:   notionapi.TitleProperty{Title: richText(t.Description)},
		PropTransactionID: notionapi.RichTextProperty{RichText: richText(t.ID)},
		PropAmount:        notionapi.NumberProperty{Number: t.Amount.InexactFloat64()},
		PropCategory:      notionapi.SelectProperty{Select: notionapi.Option{Name: categoryName}},
	}

	if d, err := time.Parse(money.DateLayout, t.OccurredOn); err == nil {
		date := notionapi.Date(d)
		props[PropDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}}
	}

	optional := map[string]string{
		PropAccount:      t.Account(),
		PropCounterparty: t.Counterparty,
		PropReference:    t.Reference,
		PropCompany:      t.Company,
	}
	for name, value := range optional {
		if value != "" {
			props[name] = notionapi.RichTextProperty{RichText: richText(value)}
		}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

// pageSummary is what the sync compares to decide whether a page is stale.
type pageSummary struct {
	description string
	category    string
	amount      float64
}

func summarize(props notionapi.Properties) pageSummary {
	s := pageSummary{
		description: plainText(props[PropDescription]),
		category:    plainText(props[PropCategory]),
	}
	switch v := props[PropAmount].(type) {
	case *notionapi.NumberProperty:
		s.amount = v.Number
	case notionapi.NumberProperty:
		s.amount = v.Number
	}
	return s
}

// plainText flattens title, rich text and select properties. Pages read
// from the API carry pointer properties; pages built locally carry values.
func plainText(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return joinRichText(v.Title)
	case notionapi.TitleProperty:
		return joinRichText(v.Title)
	case *notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	case notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	case *notionapi.SelectProperty:
		return v.Select.Name
	case notionapi.SelectProperty:
		return v.Select.Name
	}
	return ""
}

func joinRichText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

// extractTransactionID returns the Transaction ID property, or "".
func extractTransactionID(page notionapi.Page) string {
	return plainText(page.Properties[PropTransactionID])
}
