// Package domain defines the core data structures shared by the trade
// execution and reward settlement services.
package domain

import "github.com/gagliardetto/solana-go"

// NativeDecimals is the fixed decimal precision of the native asset (SOL).
const NativeDecimals uint8 = 9

// NativeMint is the pseudo-mint address under which the native asset is
// quoted by the aggregator. It doubles as the wrapped-SOL mint.
var NativeMint = solana.SolMint.String()

// IsNativeMint reports whether the mint address denotes the native asset or
// its wrapped representation.
func IsNativeMint(mint string) bool {
	return mint == NativeMint
}
