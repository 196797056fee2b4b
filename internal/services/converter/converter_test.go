package converter

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tokenpost/tradecore/internal/domain"
)

type fakeMintInfo struct {
	decimals uint8
	err      error
	calls    int
}

func (f *fakeMintInfo) MintDecimals(_ context.Context, _ string) (uint8, error) {
	f.calls++
	return f.decimals, f.err
}

func TestToBaseUnits(t *testing.T) {
	c := New(&fakeMintInfo{})

	tests := []struct {
		name     string
		ui       string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"whole native", "1.5", 9, 1_500_000_000, false},
		{"six decimals", "0.000001", 6, 1, false},
		{"rounds sub-precision", "0.0000000004", 9, 0, false},
		{"rounds half up", "0.0000000015", 9, 2, false},
		{"zero", "0", 9, 0, false},
		{"negative rejected", "-1", 9, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ui, err := decimal.NewFromString(tc.ui)
			require.NoError(t, err)

			got, err := c.ToBaseUnits(ui, tc.decimals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestToBaseUnits_Overflow(t *testing.T) {
	c := New(&fakeMintInfo{})

	huge := decimal.NewFromUint64(^uint64(0)).Add(decimal.NewFromInt(1))
	_, err := c.ToBaseUnits(huge, 0)
	require.Error(t, err)
}

func TestFromBaseUnits_RoundTrip(t *testing.T) {
	c := New(&fakeMintInfo{})

	ui := decimal.RequireFromString("12.345678901")
	base, err := c.ToBaseUnits(ui, 9)
	require.NoError(t, err)
	require.True(t, ui.Equal(c.FromBaseUnits(base, 9)))
}

func TestDecimalsFor_NativeSkipsChain(t *testing.T) {
	chain := &fakeMintInfo{decimals: 6}
	c := New(chain)

	decimals, err := c.DecimalsFor(context.Background(), domain.NativeMint)
	require.NoError(t, err)
	require.Equal(t, domain.NativeDecimals, decimals)
	require.Zero(t, chain.calls, "native precision must not hit the network")
}

func TestDecimalsFor_Token(t *testing.T) {
	c := New(&fakeMintInfo{decimals: 6})

	decimals, err := c.DecimalsFor(context.Background(), "TokenMint1111111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, uint8(6), decimals)
}

func TestTokenAmount_ChainError(t *testing.T) {
	c := New(&fakeMintInfo{err: errors.New("rpc down")})

	_, err := c.TokenAmount(context.Background(), "TokenMint1111111111111111111111111111111111", 1)
	require.Error(t, err)
}
