package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/slackscan/internal/config"
	"github.com/ca-srg/slackscan/internal/metrics"
	"github.com/ca-srg/slackscan/internal/slacksearch"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	searchBatchSize int
	searchOutput    string
	searchBackend   string
	searchParser    string
	searchParallel  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query> [query...]",
	Short: "Run search_slack for one or more queries",
	Long: `
Run the search_slack table function once per query. Queries run concurrently;
results are printed in argument order.

Examples:
  slackscan search "deploy failed"
  slackscan search "in:#ops incident" "from:@alice release" --output json
  slackscan search "outage" --backend sdk --output yaml
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchBatchSize, "batch-size", slacksearch.DefaultBatchSize, "Rows pulled per batch")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", outputTable, "Output format: table|json|yaml")
	searchCmd.Flags().IntVar(&searchParallel, "parallel", 4, "Maximum concurrent scans")
	searchCmd.Flags().AddFlagSet(sourceFlags())
}

// sourceFlags holds the flags that override backend selection from the environment.
func sourceFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("source", pflag.ContinueOnError)
	fs.StringVar(&searchBackend, "backend", "", "Search backend: http|sdk (default SLACK_SEARCH_BACKEND)")
	fs.StringVar(&searchParser, "parser", "", "Response parser for the http backend: strict|tolerant (default SLACK_SEARCH_PARSER)")
	return fs
}

// scanResult is the outcome of one query.
type scanResult struct {
	Query  string            `json:"query" yaml:"query"`
	ScanID string            `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	Rows   []slacksearch.Row `json:"rows" yaml:"rows"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchBatchSize < 1 {
		return fmt.Errorf("--batch-size must be positive, got %d", searchBatchSize)
	}
	format := strings.ToLower(strings.TrimSpace(searchOutput))
	switch format {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("invalid output format: %s. Valid formats: table, json, yaml", searchOutput)
	}
	if appConfig == nil {
		return fmt.Errorf("configuration not loaded")
	}

	table, err := newTableFunction(appConfig, searchBackend, searchParser)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := runScans(ctx, table, args, searchBatchSize, searchParallel)

	if writeErr := writeResults(cmd.OutOrStdout(), format, results); writeErr != nil {
		return writeErr
	}
	return err
}

func newTableFunction(cfg *config.Config, backend, parser string) (*slacksearch.TableFunction, error) {
	if backend == "" {
		backend = cfg.Backend
	}
	if parser == "" {
		parser = cfg.Parser
	}

	clientOpts := []slacksearch.ClientOption{slacksearch.WithBaseURL(cfg.SlackAPIBaseURL)}
	if cfg.RatePerMinute > 0 {
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
		clientOpts = append(clientOpts, slacksearch.WithRateLimiter(limiter))
	}

	source, err := slacksearch.NewSource(slacksearch.SourceOptions{
		Backend: backend,
		Parser:  parser,
		Tokens:  slacksearch.EnvToken(slacksearch.DefaultTokenEnv),
		Client:  clientOpts,
		SDK:     slacksearch.SDKOptions{APIURL: cfg.SlackAPIBaseURL},
	})
	if err != nil {
		return nil, err
	}

	opts := []slacksearch.TableOption{slacksearch.WithInitTimeout(cfg.SearchTimeout)}
	if cfg.StatsEnabled {
		opts = append(opts, slacksearch.WithScanRecorder(metrics.Recorder{}))
	}
	return slacksearch.NewTableFunction(source, opts...), nil
}

// runScans executes one scan per query with at most parallel in flight. A failing query does not
// cancel the others; its error is reported in its result and joined into the returned error.
func runScans(ctx context.Context, table *slacksearch.TableFunction, queries []string, batchSize, parallel int) ([]scanResult, error) {
	results := make([]scanResult, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, query := range queries {
		g.Go(func() error {
			res, err := runScan(ctx, table, query, batchSize)
			if err != nil {
				res.Error = err.Error()
				errs[i] = fmt.Errorf("query %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func runScan(ctx context.Context, table *slacksearch.TableFunction, query string, batchSize int) (scanResult, error) {
	res := scanResult{Query: query, Rows: []slacksearch.Row{}}

	bind, err := table.Bind(query)
	if err != nil {
		return res, err
	}
	scan, err := table.Init(ctx, bind)
	if err != nil {
		return res, err
	}
	defer scan.Close()
	res.ScanID = scan.ID()

	batch := make([]slacksearch.Row, batchSize)
	for n := scan.Pull(batch); n > 0; n = scan.Pull(batch) {
		res.Rows = append(res.Rows, batch[:n]...)
	}
	return res, nil
}

func writeResults(w io.Writer, format string, results []scanResult) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, results)
	}
}

func writeTable(w io.Writer, results []scanResult) error {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", res.Query)
		if res.Error != "" {
			fmt.Fprintf(w, "error: %s\n", res.Error)
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCHANNEL\tUSERNAME\tTIMESTAMP\tTEXT\tPERMALINK")
		for _, row := range res.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				row.ID, row.Channel, row.Username, formatTimestamp(row.Timestamp), singleLine(row.Text, 60), row.Permalink)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	}
	return nil
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return "NULL"
	}
	return ts.Format("2006-01-02 15:04:05.000000")
}

func singleLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
