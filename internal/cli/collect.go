package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baseline/collect"
	"github.com/hazyhaar/baseline/extract"
	"github.com/hazyhaar/baseline/fetch"
	"github.com/hazyhaar/baseline/horosafe"
)

func newCollectCmd(a *app) *cobra.Command {
	var catalog string
	cmd := &cobra.Command{
		Use:   "collect [url...]",
		Short: "Fetch URLs, store snapshots and append ledger entries",
		Long: "Fetches each URL under the configured policy. URLs come from the arguments,\n" +
			"else from the config file, else from the curated catalog. One JSON report\n" +
			"per URL is written to stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCollect(cmd.Context(), cmd.OutOrStdout(), args, catalog)
		},
	}
	cmd.Flags().StringVar(&catalog, "catalog", "", "catalog YAML used when no URLs are given")
	return cmd
}

func (a *app) runCollect(ctx context.Context, out io.Writer, args []string, catalog string) error {
	list, err := a.targets(args, catalog)
	if err != nil {
		return err
	}
	policy, err := a.cfg.Policy.Policy()
	if err != nil {
		return err
	}

	st, err := a.openStores(true)
	if err != nil {
		return err
	}
	defer st.Close()

	guard := horosafe.URLGuard{AllowPrivate: a.cfg.AllowPrivate}
	fetcher := fetch.New(
		fetch.WithUserAgent(a.cfg.UserAgent),
		fetch.WithURLValidator(guard.Check),
		fetch.WithLogger(a.logger),
	)
	c := collect.New(fetcher, st.snapshots, st.ledger,
		collect.WithPolicy(policy),
		collect.WithThreshold(a.cfg.SimilarityThreshold),
		collect.WithTelemetry(st.telemetry),
		collect.WithExtractor(extract.New(a.cfg.Extract.Options())),
		collect.WithLogger(a.logger),
	)

	a.logger.Info("collect: starting", "urls", len(list), "backend", a.cfg.Backend, "ledger", a.cfg.LedgerPath)
	reports, runErr := c.Run(ctx, list)

	enc := json.NewEncoder(out)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("collect: stopped after %d of %d urls: %w", len(reports), len(list), runErr)
	}
	return nil
}

func (a *app) targets(args []string, catalog string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.cfg.URLs) > 0 {
		return a.cfg.URLs, nil
	}
	return a.catalogList(catalog)
}
