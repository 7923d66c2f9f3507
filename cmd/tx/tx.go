// Package tx holds the commands that talk to the node.
package tx

import (
	"context"

	"github.com/chapool/wallet-core/internal/app"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func New() []*cobra.Command {
	return []*cobra.Command{
		newBalance(),
		newFees(),
		newSend(),
		newReceipt(),
	}
}

// sender returns addr, or the selected wallet when addr is empty.
func sender(ctx context.Context, a *app.App, addr string) (string, error) {
	if addr != "" {
		return addr, nil
	}

	w, err := a.Wallet.SelectedWallet(ctx)
	if err != nil {
		return "", err
	}

	return w.Address, nil
}

func decodeData(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	return hexutil.Decode(s)
}
