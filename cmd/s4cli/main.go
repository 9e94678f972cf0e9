package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/s4/pkg/cond"
	"github.com/cuemby/s4/pkg/fetch"
	"github.com/cuemby/s4/pkg/log"
	"github.com/cuemby/s4/pkg/metrics"
	"github.com/cuemby/s4/pkg/result"
	"github.com/cuemby/s4/pkg/s4"
	"github.com/cuemby/s4/pkg/txn"
	"github.com/cuemby/s4/pkg/value"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "s4cli",
	Short:   "s4cli - operate and inspect an s4 relation database",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("s4cli version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func openFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("known-key", nil, "Pre-intern this key so its id is stable across opens (repeatable)")
	cmd.Flags().Bool("memory", false, "Open a purely in-memory database instead of the file given")
}

func openDatabase(cmd *cobra.Command, path string) (*s4.DB, error) {
	knownKeys, _ := cmd.Flags().GetStringSlice("known-key")
	memory, _ := cmd.Flags().GetBool("memory")

	flags := s4.Exists
	if memory {
		flags = s4.Memory
	}
	return s4.Open(path, knownKeys, flags)
}

var openCmd = &cobra.Command{
	Use:   "open PATH",
	Short: "Open a database and report its identity and size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("✓ opened %s\n", args[0])
		fmt.Printf("  uuid: %s\n", db.UUID())
		fmt.Printf("  facts: %d\n", db.Len())
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump PATH",
	Short: "Print every quintuple in the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		facts := db.Facts()
		fmt.Printf("%-20s %-12s %-20s %-12s %s\n", "KEY_A", "VAL_A", "KEY_B", "VAL_B", "SOURCE")
		for _, f := range facts {
			fmt.Printf("%-20s %-12s %-20s %-12s %s\n", f.KeyA, valueString(f.ValA), f.KeyB, valueString(f.ValB), f.Src)
		}
		fmt.Printf("%d quintuple(s)\n", len(facts))
		return nil
	},
}

func valueString(v *value.Value) string {
	if v == nil {
		return "<nil>"
	}
	if s, err := v.Str(); err == nil {
		return s
	}
	n, _ := v.Int()
	return strconv.FormatInt(int64(n), 10)
}

var queryCmd = &cobra.Command{
	Use:   "query PATH",
	Short: "Run a single-filter query and print the resulting rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		filterKey, _ := cmd.Flags().GetString("filter-key")
		filterOp, _ := cmd.Flags().GetString("filter-op")
		filterVal, _ := cmd.Flags().GetString("filter-value")
		columns, _ := cmd.Flags().GetStringSlice("column")
		orderBy, _ := cmd.Flags().GetString("order-by")
		descending, _ := cmd.Flags().GetBool("descending")

		if filterKey == "" {
			return fmt.Errorf("--filter-key is required")
		}
		typ, err := parseFilterOp(filterOp)
		if err != nil {
			return err
		}

		var v *value.Value
		if typ != cond.Exists {
			v = parseValue(filterVal)
		}
		f := cond.NewFilter(typ, filterKey, v, nil, value.Binary, 0)

		if len(columns) == 0 {
			return fmt.Errorf("at least one --column is required")
		}
		cols := make([]fetch.Column, len(columns))
		for i, c := range columns {
			cols[i] = fetch.NewColumn(c, nil, 0)
		}
		fs := fetch.NewFetchSpec(cols...)

		reader := db.Begin(txn.ReadOnly)
		defer reader.Abort()

		rows, err := reader.Query(f, fs)
		if err != nil {
			return err
		}

		if orderBy != "" {
			idx := -1
			for i, c := range columns {
				if c == orderBy {
					idx = i
				}
			}
			if idx >= 0 {
				rows = result.Sort(rows, result.Order{result.ColumnOrder{Columns: []int{idx}, Mode: value.Binary, Descending: descending}})
			}
		}

		printRows(columns, rows)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync PATH",
	Short: "Write a fresh snapshot and truncate the redo log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Sync(); err != nil {
			return err
		}
		fmt.Printf("✓ synced %s\n", args[0])
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve PATH",
	Short: "Open a database and expose Prometheus/health endpoints until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd, args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		collector := metrics.NewCollector(db)
		collector.Start()
		defer collector.Stop()
		fmt.Println("✓ metrics collector started")

		metrics.RegisterComponent("store", true, "loaded")
		metrics.RegisterComponent("log", true, "open")

		addr, _ := cmd.Flags().GetString("addr")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		fmt.Printf("✓ metrics endpoint: http://%s/metrics\n", addr)
		fmt.Printf("✓ health endpoints:\n")
		fmt.Printf("  - health check: http://%s/health\n", addr)
		fmt.Printf("  - readiness:    http://%s/ready\n", addr)
		fmt.Printf("  - liveness:     http://%s/live\n", addr)

		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready and /live on")

	for _, c := range []*cobra.Command{openCmd, dumpCmd, queryCmd, syncCmd, serveCmd} {
		openFlags(c)
	}

	queryCmd.Flags().String("filter-key", "", "Key the filter applies to (required)")
	queryCmd.Flags().String("filter-op", "exists", "Filter operation: equal, notequal, greater, smaller, greatereq, smallereq, match, exists, token")
	queryCmd.Flags().String("filter-value", "", "Reference value for the filter (ignored for exists)")
	queryCmd.Flags().StringSlice("column", nil, "Column to fetch, in output order (repeatable)")
	queryCmd.Flags().String("order-by", "", "Sort rows by this column (must also be a --column)")
	queryCmd.Flags().Bool("descending", false, "Reverse the --order-by sort")
}

func parseFilterOp(op string) (cond.FilterType, error) {
	switch strings.ToLower(op) {
	case "equal", "":
		return cond.Equal, nil
	case "notequal":
		return cond.NotEqual, nil
	case "greater":
		return cond.Greater, nil
	case "smaller":
		return cond.Smaller, nil
	case "greatereq":
		return cond.GreaterEq, nil
	case "smallereq":
		return cond.SmallerEq, nil
	case "match":
		return cond.Match, nil
	case "exists":
		return cond.Exists, nil
	case "token":
		return cond.Token, nil
	default:
		return 0, fmt.Errorf("unknown filter op %q", op)
	}
}

// parseValue treats a flag value as an int when it parses cleanly as
// one, string otherwise — s4cli has no separate --filter-type flag.
func parseValue(raw string) *value.Value {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return value.NewInt(int32(i))
	}
	return value.NewString(raw)
}

func printRows(columns []string, rows []fetch.Row) {
	if len(rows) == 0 {
		fmt.Println("no rows")
		return
	}
	fmt.Println(strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

func formatCell(cell fetch.Cell) string {
	if len(cell.Values) == 0 {
		return "<empty>"
	}
	parts := make([]string, len(cell.Values))
	for i, cv := range cell.Values {
		if s, err := cv.Val.Str(); err == nil {
			parts[i] = fmt.Sprintf("%s=%s", cv.Src, s)
		} else {
			n, _ := cv.Val.Int()
			parts[i] = fmt.Sprintf("%s=%d", cv.Src, n)
		}
	}
	return strings.Join(parts, ",")
}

