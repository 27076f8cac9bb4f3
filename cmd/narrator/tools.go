package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/mcp"
)

var (
	toolsURL     string
	toolsCommand string
	toolsArgs    string
	toolsSaveTo  string
	toolsTimeout time.Duration
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Talk to a narrator MCP server over WebSocket or a child process",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools the server advertises",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *mcp.ClientWrapper) error {
			tools, err := c.ListTools(ctx)
			if err != nil {
				return err
			}
			for _, t := range tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, t.Description)
			}
			return nil
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:     "call TOOL",
	Short:   "Call a tool with JSON arguments",
	Example: `  narrator tools call synthesize_speech --args '{"text":"Hello","voice":"Puck"}' --save hello.wav`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var callArgs map[string]any
		if toolsArgs != "" {
			if err := json.Unmarshal([]byte(toolsArgs), &callArgs); err != nil {
				return fmt.Errorf("--args is not a JSON object: %w", err)
			}
		}
		return withClient(cmd.Context(), func(ctx context.Context, c *mcp.ClientWrapper) error {
			res, err := c.CallTool(ctx, args[0], callArgs)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the narrator tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		logging.Infow("narrator: mcp stdio server starting", "version", version)
		return mcp.ServeStdio(cmd.Context(), mcp.NewServer(a.service, version))
	},
}

func init() {
	toolsCmd.PersistentFlags().StringVar(&toolsURL, "url", "", "server base URL, e.g. http://localhost:8080")
	toolsCmd.PersistentFlags().StringVar(&toolsCommand, "command", "", "command line that starts a stdio MCP server")
	toolsCmd.PersistentFlags().DurationVar(&toolsTimeout, "timeout", 5*time.Minute, "overall call timeout")
	toolsCallCmd.Flags().StringVar(&toolsArgs, "args", "", "tool arguments as a JSON object")
	toolsCallCmd.Flags().StringVar(&toolsSaveTo, "save", "", "write returned audio or image content to this path")

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
}

func withClient(ctx context.Context, fn func(context.Context, *mcp.ClientWrapper) error) error {
	ctx, cancel := context.WithTimeout(ctx, toolsTimeout)
	defer cancel()

	c := mcp.NewClientWrapper("narrator-cli", version)
	switch {
	case toolsURL != "":
		if err := c.ConnectWebSocket(ctx, strings.TrimRight(toolsURL, "/")+"/mcp/ws"); err != nil {
			return err
		}
	case toolsCommand != "":
		fields := strings.Fields(toolsCommand)
		if err := c.ConnectCommand(ctx, fields[0], fields[1:]...); err != nil {
			return err
		}
	default:
		return errors.New("one of --url or --command is required")
	}
	defer c.Close()
	return fn(ctx, c)
}

func printResult(w io.Writer, res *sdk.CallToolResult) error {
	for _, content := range res.Content {
		switch v := content.(type) {
		case *sdk.TextContent:
			fmt.Fprintln(w, v.Text)
		case *sdk.AudioContent:
			fmt.Fprintf(w, "[audio %s, %d bytes]\n", v.MIMEType, len(v.Data))
			if err := saveContent(v.Data); err != nil {
				return err
			}
		case *sdk.ImageContent:
			fmt.Fprintf(w, "[image %s, %d bytes]\n", v.MIMEType, len(v.Data))
			if err := saveContent(v.Data); err != nil {
				return err
			}
		}
	}
	if res.IsError {
		return errors.New("tool reported an error")
	}
	return nil
}

func saveContent(data []byte) error {
	if toolsSaveTo == "" {
		return nil
	}
	return os.WriteFile(toolsSaveTo, data, 0o644)
}
