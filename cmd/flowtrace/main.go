// Command flowtrace is the launcher CLI entrypoint (§4.6): it resolves
// configuration, then either injects instrumentation into a target
// source tree, answers Query Session operations against a completed log,
// or runs as a long-lived process hosting the metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"flowtrace/internal/app"
	"flowtrace/internal/query"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inject":
		runInject(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: flowtrace <inject|query|serve> [flags]")
}

func configFileFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("FLOWTRACE_CONFIG_FILE")
	if def == "" {
		def = ".flowtrace/config.json"
	}
	return fs.String("config", def, "path to .flowtrace/config.json")
}

func runInject(args []string) {
	fs := flag.NewFlagSet("inject", flag.ExitOnError)
	configFile := configFileFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: flowtrace inject [-config path] <source-root>")
		os.Exit(1)
	}
	root := fs.Arg(0)

	a, err := app.New(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown(context.Background())

	summary, err := a.Inject(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "injection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("visited %d files, rewrote %d, wrapped %d functions\n",
		summary.FilesVisited, summary.FilesRewritten, summary.FunctionsWrapped)
}

func runQuery(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: flowtrace query <operation> <logfile> [flags]")
		os.Exit(1)
	}
	operation := args[0]
	logFile := args[1]
	rest := args[2:]

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	filter := fs.String("filter", "", "substring matched against each row's raw JSON")
	groupBy := fs.String("group-by", "", "comma-separated field names")
	metric := fs.String("metric", "count", "count|sum|avg|max|min")
	field := fs.String("field", "", "numeric field for sum/avg/max/min")
	byField := fs.String("by-field", "", "field to rank by for topK")
	k := fs.Int("k", 10, "number of topK rows")
	limit := fs.Int("limit", 0, "row limit, 0 means unlimited")
	fs.Parse(rest)

	a, err := app.New("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown(context.Background())

	opened, err := a.OpenQuery(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer a.Queries.Close(opened.SessionID)

	out, err := dispatchQuery(a.Queries, opened.SessionID, operation, *filter, *groupBy, *metric, *field, *byField, *k, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func dispatchQuery(mgr *query.Manager, sessionID, operation, filter, groupBy, metric, field, byField string, k, limit int) (string, error) {
	switch operation {
	case "schema":
		return stringifyJSON(mgr.Schema(sessionID))
	case "search":
		return stringifyJSON(mgr.Search(sessionID, query.SearchOptions{Filter: filter, Limit: limit}))
	case "timeline":
		return stringifyJSON(mgr.Timeline(sessionID, query.SearchOptions{Filter: filter, Limit: limit}))
	case "aggregate":
		return stringifyJSON(mgr.Aggregate(sessionID, query.AggregateOptions{
			GroupBy: splitCSV(groupBy), Metric: metric, Field: field, Filter: filter,
		}))
	case "topk":
		return stringifyJSON(mgr.TopK(sessionID, query.TopKOptions{ByField: byField, K: k, Filter: filter}))
	case "flow":
		return stringifyJSON(mgr.Flow(sessionID, query.FlowOptions{Keys: splitCSV(groupBy), Filter: filter}))
	case "errors":
		return stringifyJSON(mgr.Errors(sessionID, query.SearchOptions{Filter: filter, Limit: limit}))
	case "sample":
		return stringifyJSON(mgr.Sample(sessionID, query.SearchOptions{Filter: filter, Limit: limit}))
	default:
		return "", fmt.Errorf("unknown query operation %q", operation)
	}
}

// stringifyJSON renders any query result as pretty-printed JSON. Each
// query.Manager method returns (result, error); accepting both lets call
// sites pass the method call straight through without an intermediate
// variable.
func stringifyJSON(v interface{}, err error) (string, error) {
	if err != nil {
		return "", err
	}
	body, marshalErr := json.MarshalIndent(v, "", "  ")
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(body), nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := configFileFlag(fs)
	fs.Parse(args)

	a, err := app.New(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	if err := a.StartMetrics(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start metrics server: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if err := a.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
}
