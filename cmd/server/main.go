package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikekulinski/zkstate/pkg/admin"
	"github.com/mikekulinski/zkstate/pkg/config"
	"github.com/mikekulinski/zkstate/pkg/journal"
	"github.com/mikekulinski/zkstate/pkg/logging"
	"github.com/mikekulinski/zkstate/pkg/server"
	"github.com/mikekulinski/zkstate/pkg/session"
	"github.com/mikekulinski/zkstate/pkg/transport"
	"github.com/mikekulinski/zkstate/pkg/zxid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string

	_mainLogger = logging.NewLogger("main")
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zkstate-server",
		Short: "Standalone ZooKeeper-style coordination server",
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file, defaults are used when empty")
	defaultConfigCmd := &cobra.Command{
		Use:   "default-config",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.WriteDefault(cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(serveCmd, defaultConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(configPath)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, j := newServer(cfg)
	sessions := session.NewTable(session.Config{
		ServerID:   cfg.Server.ServerID,
		MinTimeout: time.Duration(cfg.Session.MinTimeoutMs) * time.Millisecond,
		MaxTimeout: time.Duration(cfg.Session.MaxTimeoutMs) * time.Millisecond,
	}, zxid.SystemClock)
	service := server.NewService(srv, sessions, server.ServiceOptions{
		Executor:    cfg.Core.Executor,
		MailboxSize: cfg.Core.MailboxSize,
		Settings:    settings(cfg),
	})
	defer service.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Listen, err)
	}
	grpcServer := transport.NewGRPCServer(service.Executor(), sessions)
	g.Go(func() error {
		_mainLogger.Infof("serving sessions on %s", lis.Addr())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	if cfg.Server.AdminListen != "" {
		httpServer := &http.Server{
			Addr:    cfg.Server.AdminListen,
			Handler: admin.New(service, j).Handler(),
		}
		g.Go(func() error {
			_mainLogger.Infof("serving diagnostics on %s", cfg.Server.AdminListen)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return service.RunExpiry(ctx, time.Duration(cfg.Session.TickMs)*time.Millisecond)
	})

	err = g.Wait()
	_mainLogger.Infof("stopped at %s after %d requests", srv.LastZxid(), srv.Stats().Processed)
	return err
}

// newServer builds the core server. The journal is nil unless core.journal is set, in which case
// it is subscribed to every applied transaction.
func newServer(cfg *config.Config) (*server.Server, *journal.Journal) {
	srv := server.NewServer(server.Options{InitialZxid: zxid.ZXID(cfg.Core.InitialZxid)})
	if !cfg.Core.Journal {
		return srv, nil
	}
	j := journal.New()
	srv.Subscribe(j)
	_mainLogger.Warnf("journal enabled, it keeps every transaction in memory")
	return srv, j
}

// settings is what the conf command prints.
func settings(cfg *config.Config) map[string]string {
	return map[string]string{
		"listen":         cfg.Server.Listen,
		"admin_listen":   cfg.Server.AdminListen,
		"server_id":      strconv.FormatInt(cfg.Server.ServerID, 10),
		"min_timeout_ms": strconv.FormatInt(cfg.Session.MinTimeoutMs, 10),
		"max_timeout_ms": strconv.FormatInt(cfg.Session.MaxTimeoutMs, 10),
		"tick_ms":        strconv.FormatInt(cfg.Session.TickMs, 10),
		"initial_zxid":   zxid.ZXID(cfg.Core.InitialZxid).String(),
		"executor":       cfg.Core.Executor,
		"mailbox_size":   strconv.Itoa(cfg.Core.MailboxSize),
		"journal":        strconv.FormatBool(cfg.Core.Journal),
		"log_level":      cfg.Log.Level,
	}
}
