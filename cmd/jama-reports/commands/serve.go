package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jama-reports/internal/httpapi"
	"jama-reports/internal/report"
)

var (
	serveAddr     string
	serveOpen     bool
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reports over HTTP and refresh them periodically",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		interval := serveInterval
		if interval == 0 {
			interval = cfg.RefreshInterval
		}

		store := openSnapshot()
		if store != nil {
			defer store.Close()
		}
		svc := newService(store)

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		srv := &http.Server{
			Handler:           httpapi.NewRouter(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if interval > 0 {
			g.Go(func() error {
				refreshLoop(ctx, svc, interval)
				return nil
			})
		}

		if serveOpen {
			url := "http://" + browseAddr(ln.Addr().String()) + "/api/status?format=mermaid"
			if err := browser.OpenURL(url); err != nil {
				log.Warn().Err(err).Str("url", url).Msg("Failed to open browser")
			}
		}

		err = g.Wait()
		saveCache()
		return err
	},
}

// refreshLoop refreshes every plan on each tick until ctx is done.
func refreshLoop(ctx context.Context, svc *report.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Refresh(ctx, ""); err != nil {
				log.Warn().Err(err).Msg("Periodic refresh failed")
				continue
			}
			saveCache()
		}
	}
}

// browseAddr turns a wildcard listen address into one a browser can open.
func browseAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "::" || strings.HasPrefix(host, "0.0.0.0") {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: HTTP_ADDR or :8050)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the status chart in the default browser")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "refresh interval; 0 uses REFRESH_INTERVAL_SECONDS, negative disables refreshing")
}
