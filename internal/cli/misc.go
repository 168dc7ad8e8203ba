package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/extract"
	"github.com/hazyhaar/baseline/fetch"
	"github.com/hazyhaar/baseline/similarity"
	"github.com/hazyhaar/baseline/urls"
)

func newURLsCmd(a *app) *cobra.Command {
	var out, catalog string
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Generate the curated starter URL list",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.catalogList(catalog)
			if err != nil {
				return err
			}
			p, err := urls.WriteStarterList(cmd.Context(), blob.NewFS(""), out, list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d curated URLs to %s\n", len(list), p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "urls", "output directory")
	cmd.Flags().StringVar(&catalog, "catalog", "", "catalog YAML (default: built-in)")
	return cmd
}

func (a *app) catalogList(catalog string) ([]string, error) {
	if catalog == "" {
		catalog = a.cfg.Catalog
	}
	if catalog == "" {
		return urls.Generate(urls.DefaultCatalog())
	}
	cat, err := urls.LoadCatalog(catalog)
	if err != nil {
		return nil, err
	}
	return urls.Generate(cat)
}

func newSimilarityCmd(a *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "similarity <file-a> <file-b>",
		Short: "Score the line similarity of two captured bodies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var texts [2]string
			ex := extract.New(a.cfg.Extract.Options())
			for i, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				texts[i] = ex.Text(contentType, string(data), "")
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(similarity.Compare(texts[0], texts[1]))
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "text/plain", "content type of both files (text/html enables extraction)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <url>",
		Short: "Show recent fetch attempts for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStores(true)
			if err != nil {
				return err
			}
			defer st.Close()
			entries, err := st.telemetry.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of attempts")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count fetch attempts per outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStores(true)
			if err != nil {
				return err
			}
			defer st.Close()
			stats, err := st.telemetry.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, o := range fetch.Outcomes {
				if _, ok := stats[string(o)]; !ok {
					stats[string(o)] = 0
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
