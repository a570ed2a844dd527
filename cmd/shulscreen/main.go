package main

import (
	"context"
	"flag"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"shulscreen/internal/capture"
	"shulscreen/internal/config"
	"shulscreen/internal/console"
	appLog "shulscreen/internal/log"
	"shulscreen/internal/metrics"
	"shulscreen/internal/myzmanim"
	"shulscreen/internal/refresh"
	"shulscreen/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	capture    bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("shulscreen starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if !flags.debug && conf.LogLevel != "" {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshSpec(),
		"postal_query", conf.MyZmanim.PostalQuery,
		"time_format", conf.Display.TimeFormat,
		"week_starts_on", conf.Rules.WeekStartsOn,
		"location_cache", conf.LocationCache.Backend,
		"capture", conf.Capture.Enabled || flags.capture,
		"once", flags.once,
	)

	if err := conf.Credentials(); err != nil {
		// Not fatal: the page still serves and shows the error until the
		// config is fixed.
		appLog.Warn("zmanim credentials missing; refresh cycles will fail", "config_path", flags.configPath)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	m := metrics.NewManager(metrics.WithProcessCollectors())

	store, closeStore := locationStore(conf)
	defer closeStore()

	client := myzmanim.New(myzmanim.Options{
		Endpoint:    conf.MyZmanim.Endpoint,
		User:        conf.MyZmanim.User,
		Key:         conf.MyZmanim.Key,
		Coding:      conf.MyZmanim.Coding,
		Language:    conf.MyZmanim.Language,
		PostalQuery: conf.MyZmanim.PostalQuery,
		Timeout:     time.Duration(conf.MyZmanim.TimeoutSeconds) * time.Second,
		DayTTL:      time.Duration(conf.MyZmanim.DayCacheMinutes) * time.Minute,
		Store:       store,
		Metrics:     m,
	})

	ctrl := refresh.New(client, refresh.Options{
		Settings: conf.Settings(),
		Location: loc,
		Spec:     conf.RefreshSpec(),
		Check:    conf.Credentials,
		Metrics:  m,
	})

	srv := web.NewServer(conf, ctrl, m)
	captureOpts := capture.Options{
		URL:        boardURL(conf),
		OutputPath: conf.PreviewPath(),
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}

	if flags.once {
		os.Exit(runOnce(ctx, ctrl, srv, captureOpts, flags.capture))
	}

	var capturer *capture.Capturer
	if conf.Capture.Enabled || flags.capture {
		capturer = capture.NewCapturer(ctx, captureOpts)
		ctrl.OnApplied(capturer.OnApplied)
	}

	// The server goes up first so a capture triggered by the initial cycle
	// can load the page.
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx) }()

	if err := ctrl.Start(ctx); err != nil {
		appLog.Error("failed to start refresh scheduler", err, "spec", conf.RefreshSpec())
		cancel()
		<-srvErr
		os.Exit(1)
	}

	if err := <-srvErr; err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		cancel()
	}
	if capturer != nil {
		capturer.Wait()
	}
	appLog.Info("shulscreen exiting")
}

// runOnce runs a single cycle, prints the board and optionally captures it.
// The returned value is the process exit code.
func runOnce(ctx context.Context, ctrl *refresh.Controller, srv *web.Server, opts capture.Options, shoot bool) int {
	if err := ctrl.RunOnce(ctx); err != nil {
		appLog.Error("refresh cycle failed", err)
		return 1
	}
	if err := console.Print(os.Stdout, ctrl.Board()); err != nil {
		appLog.Error("failed to print board", err)
		return 1
	}
	if !shoot {
		return 0
	}

	srvCtx, stop := context.WithCancel(ctx)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(srvCtx) }()
	defer func() {
		stop()
		<-srvErr
	}()

	// Give the listener a moment to bind before the browser navigates.
	time.Sleep(200 * time.Millisecond)
	if err := capture.BoardPNG(ctx, opts); err != nil {
		appLog.Error("capture failed", err, "url", opts.URL)
		return 1
	}
	appLog.Info("capture written", "path", opts.OutputPath)
	return 0
}

// locationStore builds the configured persistent location cache. The
// returned func releases it.
func locationStore(conf *config.Config) (myzmanim.LocationStore, func()) {
	switch conf.LocationCache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.LocationCache.RedisAddr,
			Password: conf.LocationCache.RedisPassword,
			DB:       conf.LocationCache.RedisDB,
		})
		appLog.Info("location cache: redis", "addr", conf.LocationCache.RedisAddr, "db", conf.LocationCache.RedisDB)
		return myzmanim.NewRedisStore(rdb, ""), func() {
			if err := rdb.Close(); err != nil {
				appLog.Error("failed to close redis client", err)
			}
		}
	default:
		path := conf.LocationCachePath()
		appLog.Info("location cache: file", "path", path)
		return myzmanim.NewFileStore(path), func() {}
	}
}

// boardURL is the address the headless browser loads. Wildcard listen
// addresses are reached over loopback.
func boardURL(conf *config.Config) string {
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/"}
	if ba := conf.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
		u.User = url.UserPassword(ba.Username, ba.Password)
	}
	return u.String()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle, print the board and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Capture the board to preview.png (with -once: capture and exit)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
