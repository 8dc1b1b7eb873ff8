// Command edgarcli fetches SEC EDGAR filings and runs the analysis
// pipeline from the terminal: list filings, render documents as
// markdown, extract sections, assemble statements.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	edgar "github.com/RxDataLab/edgar-analytics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; the environment always wins
	_ = godotenv.Load()

	viper.SetEnvPrefix("EDGAR")
	viper.AutomaticEnv()
	viper.BindEnv("email", edgar.SecEmailEnvVar)
	viper.BindEnv("name", edgar.SecNameEnvVar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "edgarcli",
		Short:         "SEC EDGAR filing fetcher and analyzer",
		Version:       edgar.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("email", "", "contact email for the SEC User-Agent header")
	root.PersistentFlags().String("config", "", "optional config file")
	viper.BindPFlag("email", root.PersistentFlags().Lookup("email"))

	cobra.OnInitialize(func() {
		if cfgFile, _ := root.PersistentFlags().GetString("config"); cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				fmt.Fprintln(os.Stderr, "Warning: could not read config:", err)
			}
		}
	})

	root.AddCommand(filingsCmd(ctx))
	root.AddCommand(renderCmd(ctx))
	root.AddCommand(sectionsCmd(ctx))
	return root.ExecuteContext(ctx)
}

func newFetcher() (*edgar.HTTPFetcher, error) {
	id := edgar.Identity{
		Name:  viper.GetString("name"),
		Email: viper.GetString("email"),
	}
	return edgar.NewHTTPFetcher(id)
}

func filingsCmd(ctx context.Context) *cobra.Command {
	var form, from, to string
	cmd := &cobra.Command{
		Use:   "filings CIK",
		Short: "List filings for a CIK",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fetcher, err := newFetcher()
			if err != nil {
				return err
			}
			subs, err := edgar.FetchSubmissions(ctx, fetcher, args[0])
			if err != nil {
				return err
			}
			filings := subs.GetRecentFilings()
			if form != "" {
				filings = edgar.FilterByForm(filings, form)
			}
			if from != "" || to != "" {
				f, t := from, to
				if f == "" {
					f = "1900-01-01"
				}
				if t == "" {
					t = "2099-12-31"
				}
				filings = edgar.FilterByDateRange(filings, f, t)
			}
			for _, f := range filings {
				fmt.Printf("%-12s %-10s %s\n", f.Form, f.FilingDate, f.AccessionNumber)
			}
			fmt.Fprintf(os.Stderr, "%d filings (%s)\n", len(filings), subs.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&form, "form", "", "filter by form type (e.g. 10-K)")
	cmd.Flags().StringVar(&from, "from", "", "earliest filing date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "latest filing date (YYYY-MM-DD)")
	return cmd
}

func renderCmd(ctx context.Context) *cobra.Command {
	var metadata bool
	cmd := &cobra.Command{
		Use:   "render URL",
		Short: "Fetch a filing document and render it as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := fetchDocument(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Print(doc.RenderMarkdown(edgar.MarkdownConfig{
				IncludeMetadata:      metadata,
				SuppressEmptyColumns: true,
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&metadata, "metadata", false, "append filtered-content metadata")
	return cmd
}

func sectionsCmd(ctx context.Context) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "sections URL",
		Short: "Detect and print filing sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := fetchDocument(ctx, args[0])
			if err != nil {
				return err
			}
			if section != "" {
				for name, s := range doc.Sections {
					if strings.EqualFold(name, section) {
						fmt.Println(doc.SectionText(s))
						return nil
					}
				}
				return fmt.Errorf("section %q not found", section)
			}
			for name, s := range doc.Sections {
				fmt.Printf("%-10s %-55s confidence=%.2f\n", name, s.Title, s.Confidence)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "print one section's text (e.g. \"Item 1A\")")
	return cmd
}

func fetchDocument(ctx context.Context, url string) (*edgar.Document, error) {
	fetcher, err := newFetcher()
	if err != nil {
		return nil, err
	}
	res, err := fetcher.Fetch(ctx, url, "")
	if err != nil {
		return nil, err
	}
	return edgar.ParseHTMLDocument(res.Body, edgar.DefaultParserConfig())
}
