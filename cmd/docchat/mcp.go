package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/mcpserver"
	"github.com/braindrive/docchat/internal/state"
	"github.com/spf13/cobra"
)

var mcpFlags struct {
	addr string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the document chat as MCP tools",
	Long: `Serve the document chat over the Model Context Protocol (streamable HTTP).

Tools:
  ask-documents  ask a question, optionally continuing a conversation
  list-models    list the models the backend offers

Cancelling a tool call stops generation on the backend and returns the
partial answer marked as cut off.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.addr, "addr", "127.0.0.1:7788", "Listen address (port 0 picks a random port)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := resolveRequest(ctx, cfg, client, state.Load(cfg.DataDir))
	if err != nil {
		return err
	}

	bus, err := startBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("Failed to close event bus: %v", err)
		}
	}()
	if err := startHooks(ctx, bus); err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Options{
		Transport: client,
		Models:    client,
		Request:   r.Request,
		Publisher: bus,
		Addr:      mcpFlags.addr,
	})
	if _, err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("Failed to stop MCP server: %v", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on %s (model %s)\n", srv.URL(), r.ModelLabel)
	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
	return nil
}
