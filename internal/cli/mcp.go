package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	smdmcp "github.com/ppiankov/smdnano/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs smdnano as an MCP (Model Context Protocol) server over stdio.\nExposes read-only tools: smdnano_policy and smdnano_inspect. No tool\nderives or returns a password.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv := smdmcp.New(loadEngine(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "smdnano MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Policy: %s\n", policyPath)
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
