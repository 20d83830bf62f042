package postgres

import "github.com/shopspring/decimal"

// nullDec adapts an optional decimal to the NullDecimal wrapper pgx can
// encode and scan.
func nullDec(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// decPtr converts a scanned NullDecimal back to an optional decimal.
func decPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}
