// Package transaction defines the financial transaction core shared by
// the classification engine and the banking/payment/forex capability
// interfaces.
package transaction

import "time"

// Type enumerates the kinds of financial movement a Transaction records.
type Type string

const (
	TypeDebit    Type = "Debit"
	TypeCredit   Type = "Credit"
	TypeTransfer Type = "Transfer"
	TypePayment  Type = "Payment"
	TypeRefund   Type = "Refund"
	TypeFee      Type = "Fee"
	TypeInterest Type = "Interest"
	TypeDividend Type = "Dividend"
)

// TriState models a true/false/unknown classification outcome.
type TriState int

const (
	Unknown TriState = iota
	True
	False
)

// TaxCategory is the VAT treatment assigned during classification.
type TaxCategory string

const (
	TaxStandardRate TaxCategory = "standard_rate"
	TaxZeroRate     TaxCategory = "zero_rate"
	TaxExempt       TaxCategory = "exempt"
	TaxUnknown      TaxCategory = "unknown"
)

// Classification is the overlay a classifier attaches to a Transaction.
type Classification struct {
	IsBusinessIncome TriState
	Confidence       float64
	TaxCategory      TaxCategory
	VATApplicable    bool
	Reasoning        string
	RequiresReview   bool
}

// Transaction is the financial core record the classification engine
// consumes. ValueDate and CounterpartyID are supplemental fields (not in
// the distilled spec's base type) needed by the forex specialization's
// annual-usage helpers, which must index by counterparty rather than a
// customer_id the base type never defined.
type Transaction struct {
	ID             string
	Type           Type
	Amount         float64 // decimal minor-unit-free NGN amount
	Currency       string  // ISO 4217
	Narration      string
	Timestamp      time.Time
	ValueDate      time.Time
	AccountID      string
	CounterpartyID string
	Balance        *float64
	Classification *Classification
}

// Banking specializes Transaction with channel information.
type Banking struct {
	Transaction
	Channel string // e.g. "ATM", "POS", "Internet Banking", "USSD"
}

// PaymentStatus is the lifecycle state of a payment-processor transaction.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentReversed  PaymentStatus = "Reversed"
)

// Payment specializes Transaction with processor status and fees.
type Payment struct {
	Transaction
	Status PaymentStatus
	FeeNGN float64
}

// Forex specializes Transaction with exchange-rate and regulatory-form
// metadata (PBA/BTA references).
type Forex struct {
	Transaction
	ExchangeRate       float64
	RegulatoryFormRef  string
}
