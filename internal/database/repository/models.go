package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account kinds.
const (
	KindSimpleFIN = "simplefin"
	KindMaybe     = "maybe"
)

// Linkage sync states.
const (
	StatusInitialized = "initialized"
	StatusRunning     = "running"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// Account represents a cached source or target account row.
type Account struct {
	ID              string
	Kind            string
	Identifier      string
	DisplayName     string
	Currency        string
	OrgName         *string
	AccountableType *string
	FamilyID        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Linkage pairs one source account with one target account.
type Linkage struct {
	ID              string
	SourceAccountID string
	TargetAccountID string
	Enabled         bool
	SyncStatus      string
	LastSync        *time.Time
	LastError       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Category represents a category mirrored from the target store.
type Category struct {
	ID       string
	Name     string
	ParentID *string
	Color    *string
}

// Setting represents a settings row.
type Setting struct {
	Key         string
	DisplayName string
	Value       string
}

// BudgetNotification tracks threshold state per budget, category and month.
type BudgetNotification struct {
	ID               string
	BudgetID         string
	CategoryID       string
	Month            string // YYYY-MM-01
	BudgetAmount     decimal.Decimal
	SpentAmount      decimal.Decimal
	NotificationSent bool
	SentAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
