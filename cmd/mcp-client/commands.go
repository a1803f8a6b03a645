package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/mcp-client-go/pkg/client"
	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// withSession runs fn against a freshly initialized session
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	return fn(ctx, s.client)
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the server's identity and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(_ context.Context, c *client.Client) error {
				info := c.ServerInfo()
				caps := c.ServerCapabilities()

				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "server\t%s %s\n", info.Name, info.Version)
				fmt.Fprintf(w, "protocol\t%s\n", c.NegotiatedVersion())
				fmt.Fprintf(w, "tools\t%s\n", declared(caps.Tools != nil))
				fmt.Fprintf(w, "prompts\t%s\n", declared(caps.Prompts != nil))
				fmt.Fprintf(w, "resources\t%s\n", declared(caps.Resources != nil))
				fmt.Fprintf(w, "logging\t%s\n", declared(caps.Logging != nil))
				if err := w.Flush(); err != nil {
					return err
				}
				if instructions := c.Instructions(); instructions != "" {
					fmt.Fprintf(a.out, "\n%s\n", instructions)
				}
				return nil
			})
		},
	}
}

func declared(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func newToolsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the server's tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				tools, err := c.ListTools(ctx)
				if err != nil {
					return err
				}
				return printTable(a.out, tools, func(t protocol.Tool) []string {
					return []string{t.Name, t.Description}
				})
			})
		},
	}
}

func newPromptsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the server's prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				prompts, err := c.ListPrompts(ctx)
				if err != nil {
					return err
				}
				return printTable(a.out, prompts, func(p protocol.Prompt) []string {
					args := make([]string, 0, len(p.Arguments))
					for _, arg := range p.Arguments {
						if arg.Required {
							args = append(args, arg.Name+"*")
						} else {
							args = append(args, arg.Name)
						}
					}
					return []string{p.Name, strings.Join(args, ","), p.Description}
				})
			})
		},
	}
}

func newResourcesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the server's resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				resources, err := c.ListResources(ctx)
				if err != nil {
					return err
				}
				return printTable(a.out, resources, func(r protocol.Resource) []string {
					return []string{r.URI, r.Name, r.MimeType}
				})
			})
		},
	}
}

func newTemplatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the server's resource templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				templates, err := c.ListResourceTemplates(ctx)
				if err != nil {
					return err
				}
				return printTable(a.out, templates, func(t protocol.ResourceTemplate) []string {
					return []string{t.URITemplate, t.Name, t.Description}
				})
			})
		},
	}
}

func newCallCommand(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "call TOOL [JSON-ARGUMENTS]",
		Short: "Call a tool and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arguments json.RawMessage
			if len(args) == 2 {
				arguments = json.RawMessage(args[1])
				if !json.Valid(arguments) {
					return fmt.Errorf("arguments are not valid JSON: %s", args[1])
				}
			}

			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				var onProgress client.ProgressFunc
				if !quiet {
					onProgress = progressPrinter(a.errOut)
				}

				result, err := c.CallTool(ctx, args[0], arguments, onProgress)
				var toolErr *mcperrors.ToolCallError
				if errors.As(err, &toolErr) {
					fmt.Fprintln(a.out, toolErr.Error())
					return fmt.Errorf("tool %s failed", toolErr.ToolName)
				}
				if err != nil {
					return err
				}
				printContent(a.out, result.Content)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func newPromptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt NAME [KEY=VALUE...]",
		Short: "Render a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(args[1:])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				prompt, err := c.GetPrompt(ctx, args[0], vars)
				if err != nil {
					return err
				}
				if prompt.Description != "" {
					fmt.Fprintf(a.out, "# %s\n", prompt.Description)
				}
				for _, msg := range prompt.Messages {
					fmt.Fprintf(a.out, "[%s] %s\n", msg.Role, msg.Content.String())
				}
				return nil
			})
		},
	}
}

func newReadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read URI [KEY=VALUE...]",
		Short: "Read a resource. With variables, URI is expanded as a resource template.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(args[1:])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				var result *protocol.ReadResourceResult
				if len(vars) > 0 {
					result, err = c.ReadResourceTemplate(ctx, args[0], vars)
				} else {
					result, err = c.ReadResource(ctx, args[0])
				}
				if err != nil {
					return err
				}
				for _, contents := range result.Contents {
					if contents.Text != "" {
						fmt.Fprintln(a.out, contents.Text)
						continue
					}
					fmt.Fprintf(a.out, "[%s %s, %d bytes base64]\n", contents.URI, contents.MimeType, len(contents.Blob))
				}
				return nil
			})
		},
	}
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the server's capability lists whenever they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, c *client.Client) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					select {
					case <-c.Done():
						cancel()
					case <-ctx.Done():
					}
				}()

				var mu sync.Mutex
				var g errgroup.Group
				g.Go(func() error {
					return watch(ctx, a.out, &mu, client.KindTools, c.Tools(), func(t protocol.Tool) string { return t.Name })
				})
				g.Go(func() error {
					return watch(ctx, a.out, &mu, client.KindPrompts, c.Prompts(), func(p protocol.Prompt) string { return p.Name })
				})
				g.Go(func() error {
					return watch(ctx, a.out, &mu, client.KindResources, c.Resources(), func(r protocol.Resource) string { return r.URI })
				})
				g.Go(func() error {
					return watch(ctx, a.out, &mu, client.KindResourceTemplates, c.ResourceTemplates(), func(t protocol.ResourceTemplate) string { return t.URITemplate })
				})
				if err := g.Wait(); err != nil {
					return err
				}
				return c.Err()
			})
		},
	}
}

// watch prints every status subject publishes until ctx ends or the session closes
func watch[T any](ctx context.Context, w io.Writer, mu *sync.Mutex, kind client.CapabilityKind, subject client.ReadOnlySubject[client.CapabilityStatus[T]], name func(T) string) error {
	sub := subject.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case status, ok := <-sub.C():
			if !ok {
				return nil
			}
			mu.Lock()
			printStatus(w, kind, status, name)
			mu.Unlock()
		case <-ctx.Done():
			return nil
		}
	}
}

func printStatus[T any](w io.Writer, kind client.CapabilityKind, status client.CapabilityStatus[T], name func(T) string) {
	if !status.IsSupported() {
		fmt.Fprintf(w, "%s: %s\n", kind, status)
		return
	}
	names := make([]string, 0, len(status.List()))
	for _, item := range status.List() {
		names = append(names, name(item))
	}
	fmt.Fprintf(w, "%s: %d [%s]\n", kind, len(names), strings.Join(names, " "))
}

// progressPrinter renders progress notifications on one line
func progressPrinter(w io.Writer) client.ProgressFunc {
	return func(progress float64, total *float64, message string) {
		line := protocol.FormatProgress(progress, total)
		if message != "" {
			line += " " + message
		}
		fmt.Fprintf(w, "\r%s", line)
		if total != nil && progress >= *total {
			fmt.Fprintln(w)
		}
	}
}

func printContent(w io.Writer, content []protocol.Content) {
	for _, item := range content {
		fmt.Fprintln(w, item.String())
	}
}

func printTable[T any](w io.Writer, items []T, row func(T) []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintln(tw, strings.Join(row(item), "\t"))
	}
	return tw.Flush()
}

// parseVars parses KEY=VALUE arguments
func parseVars(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		vars[key] = value
	}
	return vars, nil
}
