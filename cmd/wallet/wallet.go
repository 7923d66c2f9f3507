package wallet

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/chapool/wallet-core/internal/util/command"
	core "github.com/chapool/wallet-core/internal/wallet"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("wallet",
		newCreate(),
		newRestore(),
		newDelete(),
		newList(),
		newSelect(),
		newBackedUp(),
	)
}

func printWallet(out io.Writer, w *core.Wallet) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintf(tw, "address\t%s\n", w.Address)
	fmt.Fprintf(tw, "id\t%s\n", w.ID)
	fmt.Fprintf(tw, "created\t%s\n", w.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "backed up\t%t\n", w.IsBackedUp)
	_ = tw.Flush()
}
