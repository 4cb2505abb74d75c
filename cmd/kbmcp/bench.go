package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"kbmcp/internal/config"
	"kbmcp/internal/matcher"
	kbserver "kbmcp/internal/mcp"
	"kbmcp/internal/speedtest"
	"kbmcp/internal/toolhost"

	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		calls       int
		warmup      int
		concurrency int
		transports  []string
		kbPath      string
		query       string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare tool-call latency across MCP transports",
		Long: `Time get_knowledge_base round-trips over each transport. stdio spawns
` + "`kbmcp serve`" + ` as a subprocess; sse and http are served in-process on a
loopback port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kb, err := a.loadKnowledge(ctx, kbPath)
			if err != nil {
				return err
			}

			toolArgs := map[string]any{}
			if query != "" {
				toolArgs[kbserver.QueryArg] = query
			}

			out := cmd.OutOrStdout()
			var runs []speedtest.Stats
			for _, transport := range transports {
				transport = strings.TrimSpace(transport)
				fmt.Fprintf(out, "Benchmarking %s (%d calls)...\n", transport, calls)

				stats, err := a.benchTransport(ctx, kb, transport, kbPath, speedtest.Options{
					Calls:       calls,
					Warmup:      warmup,
					Concurrency: concurrency,
					Tool:        kbserver.ToolName,
					Args:        toolArgs,
				})
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s failed: %v\n", transport, err)
					continue
				}
				runs = append(runs, stats)
			}

			if len(runs) == 0 {
				return speedtest.ErrNoSamples
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, speedtest.Report(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&calls, "calls", "n", speedtest.DefaultCalls, "timed calls per transport")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "untimed calls before measuring")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "calls in flight at once")
	cmd.Flags().StringSliceVar(&transports, "transports",
		[]string{config.TransportStdio, config.TransportSSE, config.TransportHTTP}, "transports to compare")
	cmd.Flags().StringVar(&kbPath, "kb", "", "knowledge base file or directory (default from config)")
	cmd.Flags().StringVar(&query, "query", "", "also send a query so the server runs the matcher")
	return cmd
}

func (a *app) benchTransport(ctx context.Context, kb matcher.KnowledgeBase, transport, kbPath string, opts speedtest.Options) (speedtest.Stats, error) {
	var ep toolhost.Endpoint
	switch transport {
	case config.TransportStdio:
		var err error
		ep, err = a.endpoint("", kbPath)
		if err != nil {
			return speedtest.Stats{}, err
		}
	case config.TransportSSE, config.TransportHTTP:
		url, stop, err := a.startLoopbackServer(kb, transport)
		if err != nil {
			return speedtest.Stats{}, err
		}
		defer stop()
		ep = toolhost.Endpoint{Transport: transport, URL: url}
	default:
		return speedtest.Stats{}, fmt.Errorf("%w: %q", kbserver.ErrUnknownTransport, transport)
	}

	session, err := toolhost.Connect(ctx, ep, a.logger)
	if err != nil {
		return speedtest.Stats{}, err
	}
	defer session.Close()

	stats, err := speedtest.Run(ctx, session, opts)
	stats.Label = transport
	return stats, err
}

// startLoopbackServer serves kb on an ephemeral 127.0.0.1 port and returns
// the client URL.
func (a *app) startLoopbackServer(kb matcher.KnowledgeBase, transport string) (string, func(), error) {
	srv := kbserver.NewServer(kb, kbserver.Options{Transport: transport}, a.logger)
	handler, err := srv.Handler(transport)
	if err != nil {
		return "", nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen on loopback: %w", err)
	}

	httpSrv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Loopback server stopped", "transport", transport, "error", err)
		}
	}()

	path := kbserver.StreamablePath
	if transport == config.TransportSSE {
		path = kbserver.SSEPath
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String() + path, stop, nil
}
