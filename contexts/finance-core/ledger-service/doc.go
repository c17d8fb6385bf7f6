// Package ledgerservice keeps the append-only credit ledger and derived
// account balances. Balances change only through ledger entries; an account's
// balance always equals the sum of its entries.
package ledgerservice
