package invoice

import "github.com/shopspring/decimal"

// CreateInput carries everything invoice creation needs. Actor is the
// authenticated principal recorded on the audit trail.
type CreateInput struct {
	MerchantID    uint
	OutletID      uint
	CategoryID    *uint
	Amount        decimal.Decimal
	Currency      string
	CustomerName  string
	CustomerPhone string
	Description   string
	Actor         string
}

// UpdateInput patches the editable invoice fields. Nil pointers leave
// the field untouched.
type UpdateInput struct {
	CustomerName  *string
	CustomerPhone *string
	Description   *string
	Actor         string
}
