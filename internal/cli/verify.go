package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baseline/ledger"
)

var errLedgerBroken = errors.New("ledger verification failed")

func newVerifyCmd(a *app) *cobra.Command {
	var digest string
	cmd := &cobra.Command{
		Use:   "verify [ledger]",
		Short: "Verify the hash chain of a ledger",
		Long: "Walks the ledger and checks every entry's prev_entry_hash link and entry_hash.\n" +
			"Exits non-zero at the first broken entry.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.LedgerPath
			if len(args) == 1 {
				p = args[0]
			}
			d := a.cfg.Digest()
			if digest != "" {
				var err error
				if d, err = ledger.DigestByName(digest); err != nil {
					return err
				}
			}

			st, err := a.openStores(false)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := ledger.Verify(cmd.Context(), st.backend, p, ledger.WithDigest(d))
			if err != nil {
				return err
			}
			if res.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", res.Entries)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FAILED at entry %d: %s\n", res.Error.Index, res.Error.Message)
			return errLedgerBroken
		},
	}
	cmd.Flags().StringVar(&digest, "digest", "", "sha256 | blake2b-256 (overrides config)")
	return cmd
}
