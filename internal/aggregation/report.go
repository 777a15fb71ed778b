package aggregation

import (
	"fmt"
	"strings"
)

// Report represents the assembled result of one aggregation run
type Report struct {
	Accounts []*AccountEntry
}

// AccountEntry represents an account together with its transactions
type AccountEntry struct {
	Account      *Account
	Transactions []*Transaction
}

// Text renders the report as a plain text document.
// Accounts appear in the order returned by the resource API, each followed by its transactions.
func (report *Report) Text() string {
	builder := new(strings.Builder)
	if len(report.Accounts) == 0 {
		builder.WriteString("No accounts\n")
		return builder.String()
	}

	for _, entry := range report.Accounts {
		account := entry.Account
		fmt.Fprintf(builder, "Account -> ID: %s , Balance: %s", account.ID, account.Balance)
		if account.Type != "" {
			fmt.Fprintf(builder, " , Type: %s", account.Type)
		}
		if account.Subtype != "" {
			fmt.Fprintf(builder, " , Subtype: %s", account.Subtype)
		}
		if account.RoutingNumber != "" {
			fmt.Fprintf(builder, " , Routing number: %s", account.RoutingNumber)
		}
		builder.WriteString("\n")

		if len(entry.Transactions) == 0 {
			builder.WriteString("  No transactions\n")
			continue
		}
		for _, transaction := range entry.Transactions {
			fmt.Fprintf(builder, "  Transaction -> ID: %s , Account: %s , Amount: %s , Memo: %s\n",
				transaction.ID, transaction.AccountID, transaction.Amount, transaction.Memo)
		}
	}
	return builder.String()
}
