package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scholarly-tools/doideposit/internal/api"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

var (
	serveAddr    string
	serveVerbose bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interactive HTTP surface",
	Long: `Serve the deposit pipeline over HTTP. Deposit, export and mark-registered
actions are posted as forms; their results are queued as notifications for the
requesting user (X-Remote-User header) and redirected back to return_to.

Example:
  doideposit serve                       # Start on the configured address
  doideposit serve --addr 127.0.0.1:9090 # Start on port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on (overrides config)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "stream info log entries to stderr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	queue := notify.NewQueue()
	defer queue.Close()

	defaultContext, _ := a.cfg.ResolveContext(contextID)
	handler := api.NewHandler(api.HandlerConfig{
		Pipeline:       a.orchestrator,
		Objects:        a.store,
		Messages:       a.messages,
		Notifications:  queue,
		Catalog:        a.catalog,
		DefaultContext: defaultContext,
	})

	// Priority: --addr flag > config serve.addr
	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Serve.Addr
	}

	server, err := api.NewServer(addr, handler)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	if serveVerbose {
		streamLogs(streamCtx, os.Stderr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("doideposit listening on port %d\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatAPI, "Error stopping API server", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// streamLogs copies log entries to w until ctx is cancelled. Without a debug log file
// the logger is routed to a discarding writer at info level so entries still flow.
func streamLogs(ctx context.Context, w io.Writer) {
	if logCleanup == nil {
		log.InitWriter(io.Discard, log.LevelInfo)
	}
	entries := log.Subscribe(ctx)
	go func() {
		for ev := range entries {
			_, _ = io.WriteString(w, ev.Payload)
		}
	}()
}
