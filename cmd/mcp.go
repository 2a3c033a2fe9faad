package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	coreconfig "github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the engagement MCP server using SSE",
	Long:  `Start an MCP (Model Context Protocol) server over Server-Sent Events so AI agents can trigger polls, inspect feeds and manage executions.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("port", "", "Port for the SSE MCP server (default MCP_PORT or 8080)")
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server (default MCP_HOST or localhost)")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.MCP.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.MCP.Host = host
	}

	mcpServer := server.NewMCPServer(
		"Az-Engage MCP Server",
		cfg.App.Version,
		server.WithToolCapabilities(true),
	)

	engageHandler := mcp.InitMcpEngage(engageEngine)
	engageHandler.AddEngageTools(mcpServer)

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", cfg.MCP.Host, cfg.MCP.Port)),
		server.WithKeepAlive(true),
	)

	ctx, cancel := context.WithCancel(context.Background())
	engageEngine.Start(ctx)

	addr := fmt.Sprintf("%s:%s", cfg.MCP.Host, cfg.MCP.Port)
	logrus.Printf("Starting engagement MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s/sse", addr)
	logrus.Printf("Message endpoint: http://%s/message", addr)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		cancel()
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
