package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yosida95/uritemplate/v3"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/pagination"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// CallTool invokes a tool. arguments may be nil, a json.RawMessage, or any
// value that marshals to a JSON object. When onProgress is set the server may
// report progress, delivered in order before CallTool returns.
//
// A result with isError set is returned as a *errors.ToolCallError.
func (c *Client) CallTool(ctx context.Context, name string, arguments interface{}, onProgress ProgressFunc) (*protocol.CallToolResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	args, err := encodeArguments(arguments)
	if err != nil {
		return nil, mcperrors.ValidationErrorf("invalid arguments for tool %s: %v", name, err)
	}
	if c.cfg.validateArguments {
		if err := c.validateArguments(name, args); err != nil {
			return nil, err
		}
	}

	params := protocol.CallToolParams{Name: name, Arguments: args}
	var token protocol.ProgressToken
	if onProgress != nil {
		token = c.progress.register(onProgress)
		defer c.progress.unregister(token)
		params.Meta = &protocol.RequestMeta{ProgressToken: token}
	}

	var result protocol.CallToolResult
	if err := c.call(ctx, protocol.MethodCallTool, params, token, &result); err != nil {
		return nil, fmt.Errorf("call tool request failed: %w", err)
	}

	if result.IsError {
		return nil, mcperrors.ToolCall(name, executionErrors(result.Content))
	}
	return &result, nil
}

// GetPrompt renders a prompt with the given arguments
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var result protocol.GetPromptResult
	params := protocol.GetPromptParams{Name: name, Arguments: arguments}
	if err := c.call(ctx, protocol.MethodGetPrompt, params, "", &result); err != nil {
		return nil, fmt.Errorf("get prompt request failed: %w", err)
	}
	return &result, nil
}

// ReadResource reads the resource at uri
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var result protocol.ReadResourceResult
	if err := c.call(ctx, protocol.MethodReadResource, protocol.ReadResourceParams{URI: uri}, "", &result); err != nil {
		return nil, fmt.Errorf("read resource request failed: %w", err)
	}
	return &result, nil
}

// ReadResourceTemplate expands an RFC 6570 URI template with vars and reads the result
func (c *Client) ReadResourceTemplate(ctx context.Context, template string, vars map[string]string) (*protocol.ReadResourceResult, error) {
	uri, err := ExpandResourceTemplate(template, vars)
	if err != nil {
		return nil, err
	}
	return c.ReadResource(ctx, uri)
}

// ExpandResourceTemplate expands an RFC 6570 URI template with vars
func ExpandResourceTemplate(template string, vars map[string]string) (string, error) {
	tmpl, err := uritemplate.New(template)
	if err != nil {
		return "", mcperrors.ValidationErrorf("invalid resource template %q: %v", template, err)
	}

	values := uritemplate.Values{}
	for k, v := range vars {
		values.Set(k, uritemplate.String(v))
	}

	uri, err := tmpl.Expand(values)
	if err != nil {
		return "", mcperrors.ValidationErrorf("cannot expand resource template %q: %v", template, err)
	}
	return uri, nil
}

// Ping checks that the server is responding
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.call(ctx, protocol.MethodPing, nil, "", nil); err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	return nil
}

// NotifyRootsListChanged tells the server to ask for roots again. It requires
// a roots handler.
func (c *Client) NotifyRootsListChanged(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.cfg.roots == nil {
		return mcperrors.CapabilityNotDeclared("roots")
	}
	return c.notify(ctx, protocol.MethodRootsChanged, nil)
}

// ListTools fetches every page of tools/list
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.listTools(ctx)
}

// ListPrompts fetches every page of prompts/list
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.listPrompts(ctx)
}

// ListResources fetches every page of resources/list
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.listResources(ctx)
}

// ListResourceTemplates fetches every page of resources/templates/list
func (c *Client) ListResourceTemplates(ctx context.Context) ([]protocol.ResourceTemplate, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.listResourceTemplates(ctx)
}

func (c *Client) listTools(ctx context.Context) ([]protocol.Tool, error) {
	return pagination.CollectAll(ctx, c.cfg.maxPages, func(ctx context.Context, cursor string) (pagination.Page[protocol.Tool], error) {
		var result protocol.ListToolsResult
		params := protocol.ListToolsParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
		if err := c.call(ctx, protocol.MethodListTools, params, "", &result); err != nil {
			return pagination.Page[protocol.Tool]{}, err
		}
		return pagination.Page[protocol.Tool]{Items: result.Tools, NextCursor: result.NextCursor}, nil
	})
}

func (c *Client) listPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	return pagination.CollectAll(ctx, c.cfg.maxPages, func(ctx context.Context, cursor string) (pagination.Page[protocol.Prompt], error) {
		var result protocol.ListPromptsResult
		params := protocol.ListPromptsParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
		if err := c.call(ctx, protocol.MethodListPrompts, params, "", &result); err != nil {
			return pagination.Page[protocol.Prompt]{}, err
		}
		return pagination.Page[protocol.Prompt]{Items: result.Prompts, NextCursor: result.NextCursor}, nil
	})
}

func (c *Client) listResources(ctx context.Context) ([]protocol.Resource, error) {
	return pagination.CollectAll(ctx, c.cfg.maxPages, func(ctx context.Context, cursor string) (pagination.Page[protocol.Resource], error) {
		var result protocol.ListResourcesResult
		params := protocol.ListResourcesParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
		if err := c.call(ctx, protocol.MethodListResources, params, "", &result); err != nil {
			return pagination.Page[protocol.Resource]{}, err
		}
		return pagination.Page[protocol.Resource]{Items: result.Resources, NextCursor: result.NextCursor}, nil
	})
}

func (c *Client) listResourceTemplates(ctx context.Context) ([]protocol.ResourceTemplate, error) {
	return pagination.CollectAll(ctx, c.cfg.maxPages, func(ctx context.Context, cursor string) (pagination.Page[protocol.ResourceTemplate], error) {
		var result protocol.ListResourceTemplatesResult
		params := protocol.ListResourceTemplatesParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
		if err := c.call(ctx, protocol.MethodListResourceTemplates, params, "", &result); err != nil {
			return pagination.Page[protocol.ResourceTemplate]{}, err
		}
		return pagination.Page[protocol.ResourceTemplate]{Items: result.ResourceTemplates, NextCursor: result.NextCursor}, nil
	})
}

// validateArguments checks args against the input schema of a known tool.
// Unknown tools and tools without a schema are left to the server.
func (c *Client) validateArguments(name string, args json.RawMessage) error {
	status := c.tools.subject.Value()
	if !status.IsSupported() {
		return nil
	}
	for _, tool := range status.List() {
		if tool.Name == name {
			return c.validator.Validate(tool.InputSchema, args)
		}
	}
	return nil
}

func encodeArguments(arguments interface{}) (json.RawMessage, error) {
	switch v := arguments.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("arguments are not valid JSON")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// executionErrors turns the content of an isError result into one entry per item
func executionErrors(content []protocol.Content) []mcperrors.ExecutionError {
	out := make([]mcperrors.ExecutionError, 0, len(content))
	for _, item := range content {
		out = append(out, mcperrors.ExecutionError{Text: item.String()})
	}
	return out
}
