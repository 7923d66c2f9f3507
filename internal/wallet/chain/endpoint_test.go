package chain_test

import (
	"testing"
	"time"

	"github.com/chapool/wallet-core/internal/wallet/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointValidate(t *testing.T) {
	ep := chain.Endpoint{
		ChainID:      11155111,
		RPCURL:       "https://rpc.sepolia.org",
		NativeSymbol: "ETH",
		BlockTime:    12 * time.Second,
	}
	require.NoError(t, ep.Validate())
	assert.Equal(t, int64(11155111), ep.ChainIDBig().Int64())

	bad := ep
	bad.RPCURL = "ftp://example.com"
	require.Error(t, bad.Validate())

	bad = ep
	bad.ChainID = 0
	require.Error(t, bad.Validate())

	bad = ep
	bad.NativeSymbol = ""
	require.Error(t, bad.Validate())
}
