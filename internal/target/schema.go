package target

import "strconv"

// CurrentSchemaVersion is the first Maybe migration that renamed the
// account_* ledger tables.
const CurrentSchemaVersion int64 = 20250413141446

// Schema names the ledger tables and polymorphic entry kinds of one target
// schema generation.
type Schema struct {
	Name            string
	Entries         string
	Valuations      string
	Transactions    string
	TransactionKind string
	ValuationKind   string
}

var (
	// CurrentSchema is used by Maybe from CurrentSchemaVersion on.
	CurrentSchema = Schema{
		Name:            "current",
		Entries:         "entries",
		Valuations:      "valuations",
		Transactions:    "transactions",
		TransactionKind: "Transaction",
		ValuationKind:   "Valuation",
	}
	// LegacySchema is the namespaced Account:: layout.
	LegacySchema = Schema{
		Name:            "legacy",
		Entries:         "account_entries",
		Valuations:      "account_valuations",
		Transactions:    "account_transactions",
		TransactionKind: "Account::Transaction",
		ValuationKind:   "Account::Valuation",
	}
)

// ResolveSchema picks the schema generation for a migration version.
func ResolveSchema(version int64) Schema {
	if version >= CurrentSchemaVersion {
		return CurrentSchema
	}
	return LegacySchema
}

// parseVersion accepts the varchar versions Rails writes to schema_migrations.
func parseVersion(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}
