package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wscomms-dev/wscomms/internal/config"
	"github.com/wscomms-dev/wscomms/pkg/content"
	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/middleware"
	"github.com/wscomms-dev/wscomms/pkg/server"
)

type serveFlags struct {
	listen       string
	link         string
	loopbackOnly bool
	echo         bool
	metricsPath  string
	contentDir   string
	etcd         []string
	tick         time.Duration
	opRate       float64
}

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a host with the demo routes",
		Long: `Run a host serving two demo routes:

  /calc   arithmetic commands (Add, Subtract, Multiply, Divide, Sum,
          Echo, Whoami, Ping)
  /clock  Now, plus a Tick broadcast to every connected session

The browser client is served at /_wscomms/client.js.

Examples:
  wscomms serve
  wscomms serve --listen 127.0.0.1:9000 --loopback-only --echo
  wscomms serve --etcd 127.0.0.1:2379 --link calc-host`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, f)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, f.tick, f.opRate)
		},
	}

	cmd.Flags().StringVarP(&f.listen, "listen", "l", "", "address to listen on (default from config)")
	cmd.Flags().StringVar(&f.link, "link", "", "link name answered to GetName and announced to discovery")
	cmd.Flags().BoolVar(&f.loopbackOnly, "loopback-only", false, "reject non-loopback WebSocket clients")
	cmd.Flags().BoolVar(&f.echo, "echo", false, "print inbound messages to stdout")
	cmd.Flags().StringVar(&f.metricsPath, "metrics-path", "", "serve Prometheus metrics at this path")
	cmd.Flags().StringVar(&f.contentDir, "content-dir", "", "serve static files from this directory")
	cmd.Flags().StringSliceVar(&f.etcd, "etcd", nil, "etcd endpoints for route announcement")
	cmd.Flags().DurationVar(&f.tick, "tick", time.Second, "interval of the /clock Tick broadcast (0 disables)")
	cmd.Flags().Float64Var(&f.opRate, "op-rate", 0, "per-route command rate limit per second (0 disables)")

	return cmd
}

// applyServeFlags overlays flags the user set on the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = f.listen
	}
	if flags.Changed("link") {
		cfg.Link = f.link
	}
	if flags.Changed("loopback-only") {
		cfg.LoopbackOnly = f.loopbackOnly
	}
	if flags.Changed("echo") {
		cfg.Echo = f.echo
	}
	if flags.Changed("metrics-path") {
		cfg.MetricsPath = f.metricsPath
	}
	if flags.Changed("content-dir") {
		cfg.Content.Dir = f.contentDir
	}
	if flags.Changed("etcd") {
		cfg.Discovery.EtcdEndpoints = f.etcd
	}
}

func runServe(ctx context.Context, cfg *config.Config, tick time.Duration, opRate float64) error {
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sc := cfg.ServerConfig()
	sc.Logger = logger
	sc.Registry = reg
	sc.Gatherer = reg
	sc.ContentSources = contentSources(cfg)

	if len(cfg.Discovery.EtcdEndpoints) > 0 {
		etcd, err := discovery.NewEtcdRegistry(cfg.Discovery.EtcdEndpoints, cfg.Discovery.DialTimeout)
		if err != nil {
			return fmt.Errorf("connect etcd: %w", err)
		}
		defer etcd.Close()
		sc.Discovery = etcd
	}

	srv := server.New(sc)

	mw := []dispatch.Middleware{
		middleware.Logging(logger),
		middleware.OpenTelemetry(),
		middleware.Prometheus(middleware.WithRegistry(reg)),
	}
	if opRate > 0 {
		mw = append(mw, middleware.RateLimit(opRate, int(opRate)+1))
	}

	if _, err := srv.AddRoute("/calc", calculator{}, server.WithMiddleware(mw...)); err != nil {
		return err
	}
	clockRoute, err := srv.AddRoute("/clock", clock{now: time.Now},
		server.WithMiddleware(mw...),
		server.WithCoalesce(coalesceTicks),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if tick > 0 {
		g.Go(func() error {
			broadcastTicks(ctx, clockRoute, tick)
			return nil
		})
	}

	fmt.Printf("%s listening on %s %s\n",
		successStyle.Render("wscomms"), cfg.Listen, dimStyle.Render("(routes: /calc, /clock)"))
	return g.Wait()
}

func contentSources(cfg *config.Config) []content.Source {
	var sources []content.Source
	if cfg.Content.Dir != "" {
		sources = append(sources, content.NewFSSource(os.DirFS(cfg.Content.Dir)))
	}
	if s3cfg := cfg.Content.S3; s3cfg.Bucket != "" {
		client := content.NewS3Client(content.S3ClientOptions{
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			PathStyle: s3cfg.PathStyle,
			Anonymous: s3cfg.Anonymous,
		})
		sources = append(sources, content.NewS3Source(client, s3cfg.Bucket, s3cfg.Prefix))
	}
	return sources
}

// broadcastTicks sends a sequence number to every /clock session until ctx
// is done.
func broadcastTicks(ctx context.Context, route *server.Route, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			seq++
			if _, err := route.Notify(tickName, seq, t.UTC().Format(time.RFC3339Nano)); err != nil {
				return
			}
		}
	}
}
