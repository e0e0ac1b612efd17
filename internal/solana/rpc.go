// Package solana reads pool accounts from SVM JSON-RPC endpoints.
package solana

import "context"

// AccountReader reads accounts from an SVM chain.
type AccountReader interface {
	// GetAccountInfo retrieves one account. Returns nil if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves accounts aligned with pubkeys; missing
	// accounts are nil.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)
}

// Compile-time interface check.
var _ AccountReader = (*HTTPClient)(nil)
