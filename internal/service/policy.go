package service

import (
	"regexp"
	"strings"

	"github.com/jask/finbridge/internal/simplefin"
	"github.com/jask/finbridge/internal/target"
)

var (
	investmentInflow = regexp.MustCompile(`CONTRIBUTIONS?|INTEREST PAYMENT|AUTO CLEARING HOUSE FUND`)
	investmentFee    = regexp.MustCompile(`(RECORDKEEPING|MANAGEMENT|WRAP) FEE`)
)

// shouldSync decides whether a source transaction not yet in the ledger is
// written. Investment accounts only take contributions, interest and fund
// transfers in, and fees out; the rest is left to the balance valuation.
func shouldSync(classification string, t simplefin.Transaction) bool {
	desc := strings.ToUpper(strings.TrimSpace(t.Description))
	if desc == "" {
		return false
	}
	if classification != target.Investment {
		return true
	}
	switch {
	case t.Amount.IsPositive() && investmentInflow.MatchString(desc):
		return true
	case t.Amount.IsNegative() && investmentFee.MatchString(desc):
		return true
	}
	return false
}
