package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	pb "github.com/ppiankov/smdnano/api/smdnano/v1"
	"github.com/ppiankov/smdnano/internal/client"
	"github.com/ppiankov/smdnano/internal/server"
)

var (
	brokerAddr     string
	tabFields      []string
	tabEmbedded    bool
	invalidateNote string
)

func init() {
	for _, c := range []*cobra.Command{fillCmd, invalidateCmd, tabCmd} {
		c.PersistentFlags().StringVar(&brokerAddr, "addr", server.DefaultAddr, "Broker address")
		rootCmd.AddCommand(c)
	}
	invalidateCmd.Flags().StringVar(&invalidateNote, "reason", "user", "Reason recorded in the audit log")

	tabCmd.AddCommand(tabOpenCmd, tabNavigateCmd, tabCloseCmd, tabContextCmd)
	for _, c := range []*cobra.Command{tabOpenCmd, tabNavigateCmd} {
		c.Flags().StringArrayVar(&tabFields, "field", nil, "Input field as type[:name[:autocomplete]] (repeatable)")
		c.Flags().BoolVar(&tabEmbedded, "embedded", false, "Page is inside an embedded frame")
	}
}

var fillCmd = &cobra.Command{
	Use:   "fill <tab>",
	Short: "Fill the pending secret into a broker tab",
	Long:  "Asks the broker to fill the secret parked by 'generate --addr'. The fill is\nrefused if the tab navigated to another domain since generation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := parseTab(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			resp, err := c.Fill(ctx, tab)
			if err != nil {
				return err
			}
			if resp.Remaining > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Filled. %d field(s) remaining, next: %s\n", resp.Remaining, resp.NextHint)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Filled.")
			return nil
		})
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <tab>",
	Short: "Drop the pending secret for a broker tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := parseTab(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			removed, err := c.Invalidate(ctx, tab, invalidateNote)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Invalidated pending secret for tab %d.\n", tab)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing pending for tab %d.\n", tab)
			}
			return nil
		})
	},
}

var tabCmd = &cobra.Command{
	Use:   "tab",
	Short: "Drive the broker's browser model",
	Long:  "Open, navigate and close pages in the broker's browser model. A browser\nbridge does the same over gRPC.",
}

var tabOpenCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Open a page and print its tab ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(tabFields)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := c.OpenTab(ctx, &pb.OpenTabRequest{URL: args[0], Embedded: tabEmbedded, Fields: fields})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var tabNavigateCmd = &cobra.Command{
	Use:   "navigate <tab> <url>",
	Short: "Replace the page in a tab",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := parseTab(args[0])
		if err != nil {
			return err
		}
		fields, err := parseFields(tabFields)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			return c.Navigate(ctx, &pb.NavigateRequest{TabID: tab, URL: args[1], Embedded: tabEmbedded, Fields: fields})
		})
	},
}

var tabCloseCmd = &cobra.Command{
	Use:   "close <tab>",
	Short: "Close a tab and drop its pending secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := parseTab(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			return c.CloseTab(ctx, tab)
		})
	},
}

var tabContextCmd = &cobra.Command{
	Use:   "context <tab>",
	Short: "Show the username and password fields the page agent sees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := parseTab(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			resp, err := c.QueryContext(ctx, tab)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		})
	},
}

func withClient(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	c, err := client.New(brokerAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, c)
}

func parseTab(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tab ID %q", s)
	}
	return id, nil
}

// parseFields reads type[:name[:autocomplete]] specs.
func parseFields(specs []string) ([]pb.Field, error) {
	fields := make([]pb.Field, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if parts[0] == "" {
			return nil, fmt.Errorf("invalid field %q: missing type", spec)
		}
		f := pb.Field{Type: parts[0]}
		if len(parts) > 1 {
			f.Name = parts[1]
		}
		if len(parts) > 2 {
			f.Autocomplete = parts[2]
		}
		fields = append(fields, f)
	}
	return fields, nil
}
