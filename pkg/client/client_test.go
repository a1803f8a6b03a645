package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

var (
	toolA = protocol.Tool{Name: "a", Description: "first tool"}
	toolB = protocol.Tool{Name: "b", Description: "second tool"}
)

func TestNew(t *testing.T) {
	_, tr := newFakeServer(t, protocol.ServerCapabilities{})

	_, err := New(nil)
	assert.Error(t, err, "a transport is required")

	_, err = New(tr, WithSupportedVersions())
	assert.Error(t, err, "an empty version set is rejected")

	c, err := New(tr)
	require.NoError(t, err)
	assert.Equal(t, "go-mcp-client", c.cfg.name)
	assert.Equal(t, []string{protocol.LatestProtocolVersion}, c.cfg.supportedVersions)
	assert.Nil(t, c.ServerInfo())
	require.NoError(t, c.Close())
}

func TestCallsBeforeInitializeFail(t *testing.T) {
	_, tr := newFakeServer(t, protocol.ServerCapabilities{})
	c := newTestClient(t, tr)
	ctx := context.Background()

	_, err := c.CallTool(ctx, "a", nil, nil)
	assert.ErrorIs(t, err, mcperrors.ErrNotInitialized)
	_, err = c.ListTools(ctx)
	assert.ErrorIs(t, err, mcperrors.ErrNotInitialized)
	assert.ErrorIs(t, c.Ping(ctx), mcperrors.ErrNotInitialized)
}

func TestInitialize(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{}})
	s.handle(protocol.MethodListTools, toolsHandler(toolA))
	c := newTestClient(t, tr)

	info, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake-server", info.Name)
	assert.Equal(t, "0.1.0", info.Version)
	assert.Equal(t, info, c.ServerInfo())
	assert.Equal(t, "be nice", c.Instructions())
	assert.Equal(t, protocol.LatestProtocolVersion, c.NegotiatedVersion())
	assert.NotNil(t, c.ServerCapabilities().Tools)

	req := s.next(protocol.MethodInitialize)
	params := decodeParams[protocol.InitializeParams](t, req.Params)
	assert.Equal(t, protocol.LatestProtocolVersion, params.ProtocolVersion)
	assert.Equal(t, protocol.Implementation{Name: "test-client", Version: "0.0.1"}, params.ClientInfo)
	assert.Nil(t, params.Capabilities.Roots, "no roots handler, no roots capability")
	assert.Nil(t, params.Capabilities.Sampling, "no sampling handler, no sampling capability")

	id, ok := req.ID.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(1), id, "client ids start at 1")

	s.next(protocol.MethodInitialized)
}

func TestInitializeRunsOnce(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	c := newTestClient(t, tr)

	var wg sync.WaitGroup
	results := make([]*protocol.Implementation, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := c.Initialize(context.Background())
			assert.NoError(t, err)
			results[i] = info
		}(i)
	}
	wg.Wait()

	for _, info := range results {
		assert.Equal(t, "fake-server", info.Name)
	}
	roundTrip(t, c)
	assert.Equal(t, 1, s.count(protocol.MethodInitialize))
	assert.Equal(t, 1, s.count(protocol.MethodInitialized))
}

func TestAdvertisedCapabilitiesFollowHandlers(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	initialized(t, tr,
		WithRootsHandler(func(context.Context) ([]protocol.Root, error) { return nil, nil }),
		WithSamplingHandler(func(context.Context, *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
			return nil, nil
		}),
	)

	params := decodeParams[protocol.InitializeParams](t, s.next(protocol.MethodInitialize).Params)
	require.NotNil(t, params.Capabilities.Roots)
	assert.True(t, params.Capabilities.Roots.ListChanged)
	assert.NotNil(t, params.Capabilities.Sampling)
}

func TestUnsupportedCapabilityStaysUnsupported(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodListTools, toolsHandler(toolA))
	c := initialized(t, tr)

	assert.Equal(t, StatusUnsupported, c.Tools().Value().Kind())

	s.notify(protocol.MethodToolsChanged, nil)
	roundTrip(t, c)

	assert.Equal(t, StatusUnsupported, c.Tools().Value().Kind())
	assert.Nil(t, c.Tools().Value().List())
	assert.Equal(t, 0, s.count(protocol.MethodListTools))
}

func TestPendingBecomesSupportedOnce(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{ListChanged: true}})
	s.handle(protocol.MethodListTools, holdHandler)
	c := initialized(t, tr)

	sub := c.Tools().Subscribe()
	defer sub.Unsubscribe()
	assert.Equal(t, StatusPending, receive(t, sub).Kind())

	req := s.next(protocol.MethodListTools)
	s.respond(*req.ID, protocol.ListToolsResult{Tools: []protocol.Tool{toolA}})

	status := receive(t, sub)
	assert.Equal(t, StatusSupported, status.Kind())
	assert.Equal(t, []protocol.Tool{toolA}, status.List())
	quiet(t, sub)
}

func TestListChangedTriggersOneRefetch(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{ListChanged: true}})
	var mu sync.Mutex
	current := []protocol.Tool{toolA}
	s.handle(protocol.MethodListTools, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		mu.Lock()
		defer mu.Unlock()
		return protocol.ListToolsResult{Tools: current}, nil
	})
	c := initialized(t, tr)
	waitForKind(t, c.Tools(), StatusSupported)

	sub := c.Tools().Subscribe()
	defer sub.Unsubscribe()
	assert.Equal(t, []protocol.Tool{toolA}, receive(t, sub).List())

	mu.Lock()
	current = []protocol.Tool{toolA, toolB}
	mu.Unlock()
	s.notify(protocol.MethodToolsChanged, nil)

	assert.Equal(t, []protocol.Tool{toolA, toolB}, receive(t, sub).List())
	quiet(t, sub)
	assert.Equal(t, 2, s.count(protocol.MethodListTools))
}

func TestResourcesListChangedRefreshesTemplates(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Resources: &protocol.ResourcesCapability{ListChanged: true}})
	s.handle(protocol.MethodListResources, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.ListResourcesResult{Resources: []protocol.Resource{{URI: "file:///a", Name: "a"}}}, nil
	})
	s.handle(protocol.MethodListResourceTemplates, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.ListResourceTemplatesResult{ResourceTemplates: []protocol.ResourceTemplate{{URITemplate: "file:///{name}", Name: "files"}}}, nil
	})
	c := initialized(t, tr)

	assert.Len(t, waitForKind(t, c.Resources(), StatusSupported).List(), 1)
	assert.Len(t, waitForKind(t, c.ResourceTemplates(), StatusSupported).List(), 1)

	s.notify(protocol.MethodResourcesChanged, nil)
	require.Eventually(t, func() bool {
		return s.count(protocol.MethodListResources) == 2 && s.count(protocol.MethodListResourceTemplates) == 2
	}, waitTimeout, 5*time.Millisecond)
}

func TestFailedFetchKeepsLastValueAndRetries(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Prompts: &protocol.PromptsCapability{}})
	var mu sync.Mutex
	failures := 2
	s.handle(protocol.MethodListPrompts, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, &protocol.Error{Code: protocol.InternalError, Message: "not ready"}
		}
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{{Name: "greet"}}}, nil
	})
	c := initialized(t, tr)

	status := waitForKind(t, c.Prompts(), StatusSupported)
	assert.Equal(t, "greet", status.List()[0].Name)
	assert.Equal(t, 3, s.count(protocol.MethodListPrompts))
}

func TestHandshakeWithToolsAndPromptsOnly(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{
		Tools:   &protocol.ToolsCapability{},
		Prompts: &protocol.PromptsCapability{},
	})
	s.handle(protocol.MethodListTools, toolsHandler(toolA))
	s.handle(protocol.MethodListPrompts, promptsHandler(protocol.Prompt{Name: "greet"}))
	c := initialized(t, tr)

	assert.Equal(t, StatusUnsupported, c.Resources().Value().Kind())
	assert.Equal(t, StatusUnsupported, c.ResourceTemplates().Value().Kind())

	assert.Equal(t, []protocol.Tool{toolA}, waitForKind(t, c.Tools(), StatusSupported).List())
	assert.Len(t, waitForKind(t, c.Prompts(), StatusSupported).List(), 1)

	roundTrip(t, c)
	assert.Equal(t, 0, s.count(protocol.MethodListResources))
	assert.Equal(t, 0, s.count(protocol.MethodListResourceTemplates))
}

func TestVersionMismatchFailsSession(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodInitialize, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.InitializeResult{
			ProtocolVersion: "2024-01-01",
			ServerInfo:      protocol.Implementation{Name: "old-server", Version: "0.0.1"},
		}, nil
	})
	c := newTestClient(t, tr, WithSupportedVersions("2025-06-01"))

	_, err := c.Initialize(context.Background())
	var mismatch *mcperrors.VersionMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "2024-01-01", mismatch.Received)
	assert.Equal(t, []string{"2025-06-01"}, mismatch.Expected)
	assert.Equal(t, "Version mismatch between server and client. Received: 2024-01-01, Expected: 2025-06-01", mismatch.Error())

	params := decodeParams[protocol.InitializeParams](t, s.next(protocol.MethodInitialize).Params)
	assert.Equal(t, "2025-06-01", params.ProtocolVersion)

	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("session did not end")
	}
	assert.Error(t, c.Err())
	assert.Nil(t, c.ServerInfo())

	_, again := c.Initialize(context.Background())
	assert.Same(t, err, again)
	_, err = c.ListTools(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, s.count(protocol.MethodInitialized))
}

func TestCallToolProgressBeforeResult(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	total := 3.0
	s.handle(protocol.MethodCallTool, func(s *fakeServer, req *protocol.Message) (interface{}, *protocol.Error) {
		params := decodeParams[protocol.CallToolParams](t, req.Params)
		for i := 1; i <= 3; i++ {
			s.notify(protocol.MethodProgress, protocol.ProgressParams{
				ProgressToken: params.Meta.ProgressToken,
				Progress:      float64(i),
				Total:         &total,
				Message:       "working",
			})
		}
		return protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("done")}}, nil
	})
	c := initialized(t, tr)

	var seen []float64
	result, err := c.CallTool(context.Background(), "slow", map[string]int{"n": 3}, func(progress float64, total *float64, message string) {
		require.NotNil(t, total)
		assert.Equal(t, 3.0, *total)
		assert.Equal(t, "working", message)
		seen = append(seen, progress)
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content[0].Text)
	assert.Equal(t, []float64{1, 2, 3}, seen, "every callback ran before the result")
	assert.Equal(t, 0, c.progress.len(), "token released")
}

func TestCallToolWithoutProgressOmitsToken(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodCallTool, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("ok")}}, nil
	})
	c := initialized(t, tr)

	_, err := c.CallTool(context.Background(), "echo", json.RawMessage(`{"x":1}`), nil)
	require.NoError(t, err)

	params := decodeParams[protocol.CallToolParams](t, s.next(protocol.MethodCallTool).Params)
	assert.Nil(t, params.Meta)
	assert.JSONEq(t, `{"x":1}`, string(params.Arguments))
}

func TestOutOfOrderResponses(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodCallTool, holdHandler)
	c := initialized(t, tr)

	type reply struct {
		result *protocol.CallToolResult
		err    error
	}
	call := func(name string) <-chan reply {
		out := make(chan reply, 1)
		go func() {
			result, err := c.CallTool(context.Background(), name, nil, nil)
			out <- reply{result, err}
		}()
		return out
	}

	first := call("first")
	firstReq := s.next(protocol.MethodCallTool)
	second := call("second")
	secondReq := s.next(protocol.MethodCallTool)
	assert.Equal(t, "first", decodeParams[protocol.CallToolParams](t, firstReq.Params).Name)
	assert.Equal(t, "second", decodeParams[protocol.CallToolParams](t, secondReq.Params).Name)

	s.respond(*secondReq.ID, protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("for second")}})
	s.respond(*firstReq.ID, protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("for first")}})

	for name, ch := range map[string]<-chan reply{"first": first, "second": second} {
		select {
		case r := <-ch:
			require.NoError(t, r.err)
			assert.Equal(t, "for "+name, r.result.Content[0].Text)
		case <-time.After(waitTimeout):
			t.Fatalf("%s call did not return", name)
		}
	}
	assert.Equal(t, 0, c.pending.len())
}

func TestToolCallErrorCarriesExecutionErrors(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodCallTool, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.CallToolResult{
			IsError: true,
			Content: []protocol.Content{
				protocol.TextContent("disk full"),
				protocol.TextContent("retry later"),
			},
		}, nil
	})
	c := initialized(t, tr)

	result, err := c.CallTool(context.Background(), "write", nil, nil)
	assert.Nil(t, result)

	var toolErr *mcperrors.ToolCallError
	require.True(t, errors.As(err, &toolErr), "got %v", err)
	assert.Equal(t, "write", toolErr.ToolName)
	assert.Equal(t, []mcperrors.ExecutionError{{Text: "disk full"}, {Text: "retry later"}}, toolErr.ExecutionErrors)
	assert.Equal(t, "Error executing tool:\ndisk full\n\nretry later", toolErr.Error())
	assert.False(t, errors.Is(err, mcperrors.ErrTransportClosed))
}

func TestRemoteErrorIsReturnedToCaller(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Prompts: &protocol.PromptsCapability{}})
	s.handle(protocol.MethodListPrompts, promptsHandler())
	s.handle(protocol.MethodGetPrompt, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return nil, &protocol.Error{Code: protocol.InvalidParams, Message: "unknown prompt"}
	})
	c := initialized(t, tr)

	_, err := c.GetPrompt(context.Background(), "missing", map[string]string{"who": "me"})
	var rpcErr *mcperrors.RPCError
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, int(protocol.InvalidParams), rpcErr.Code())
	assert.Equal(t, protocol.MethodGetPrompt, rpcErr.Method)

	params := decodeParams[protocol.GetPromptParams](t, s.next(protocol.MethodGetPrompt).Params)
	assert.Equal(t, map[string]string{"who": "me"}, params.Arguments)
	assert.NoError(t, c.Err(), "a remote error does not end the session")
}

func TestGetPromptAndReadResource(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodGetPrompt, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.GetPromptResult{
			Description: "greeting",
			Messages:    []protocol.PromptMessage{{Role: protocol.RoleUser, Content: protocol.TextContent("hello")}},
		}, nil
	})
	s.handle(protocol.MethodReadResource, func(_ *fakeServer, req *protocol.Message) (interface{}, *protocol.Error) {
		params := decodeParams[protocol.ReadResourceParams](t, req.Params)
		return protocol.ReadResourceResult{Contents: []protocol.ResourceContents{{URI: params.URI, Text: "contents of " + params.URI}}}, nil
	})
	c := initialized(t, tr)
	ctx := context.Background()

	prompt, err := c.GetPrompt(ctx, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", prompt.Messages[0].Content.Text)

	res, err := c.ReadResource(ctx, "file:///notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "contents of file:///notes.txt", res.Contents[0].Text)

	res, err = c.ReadResourceTemplate(ctx, "file:///users/{id}/profile{?fields}", map[string]string{"id": "42", "fields": "name"})
	require.NoError(t, err)
	assert.Equal(t, "file:///users/42/profile?fields=name", res.Contents[0].URI)

	_, err = c.ReadResourceTemplate(ctx, "file:///{unclosed", nil)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryValidation))
}

func TestListOperationsFollowCursors(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodListTools, func(_ *fakeServer, req *protocol.Message) (interface{}, *protocol.Error) {
		params := decodeParams[protocol.ListToolsParams](t, req.Params)
		if params.Cursor == "" {
			return protocol.ListToolsResult{Tools: []protocol.Tool{toolA}, PaginatedResult: protocol.PaginatedResult{NextCursor: "page-2"}}, nil
		}
		return protocol.ListToolsResult{Tools: []protocol.Tool{toolB}}, nil
	})
	c := initialized(t, tr)

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []protocol.Tool{toolA, toolB}, tools)
	assert.Equal(t, 2, s.count(protocol.MethodListTools))
	assert.Equal(t, StatusUnsupported, c.Tools().Value().Kind(), "explicit listing does not touch the store")
}

func TestMalformedResultIsProtocolError(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodListTools, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return json.RawMessage(`{"tools":"not a list"}`), nil
	})
	c := initialized(t, tr)

	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeProtocolError), "got %v", err)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryProtocol))
	assert.Contains(t, err.Error(), "invalid tools/list result")

	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr, "the decode failure stays in the chain")
	assert.NoError(t, c.Err(), "the session survives")
}

func TestArgumentValidation(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{}})
	search := protocol.Tool{
		Name:        "search",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`),
	}
	s.handle(protocol.MethodListTools, toolsHandler(search))
	s.handle(protocol.MethodCallTool, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("found")}}, nil
	})
	c := initialized(t, tr, WithArgumentValidation(true))
	waitForKind(t, c.Tools(), StatusSupported)

	_, err := c.CallTool(context.Background(), "search", map[string]interface{}{"q": 7}, nil)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryValidation), "got %v", err)

	_, err = c.CallTool(context.Background(), "search", map[string]string{"q": "go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.count(protocol.MethodCallTool), "invalid arguments never reach the server")
}

func TestCancelledCallDropsProgressToken(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodCallTool, holdHandler)
	c := initialized(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	calls := 0
	errc := make(chan error, 1)
	go func() {
		_, err := c.CallTool(ctx, "slow", nil, func(float64, *float64, string) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		errc <- err
	}()

	req := s.next(protocol.MethodCallTool)
	token := decodeParams[protocol.CallToolParams](t, req.Params).Meta.ProgressToken
	require.NotEmpty(t, token)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeOperationCancelled))
	case <-time.After(waitTimeout):
		t.Fatal("cancelled call did not return")
	}

	note := s.next(protocol.MethodCancelled)
	cancelled := decodeParams[protocol.CancelledParams](t, note.Params)
	assert.Equal(t, req.ID.String(), cancelled.RequestID.String())

	s.notify(protocol.MethodProgress, protocol.ProgressParams{ProgressToken: token, Progress: 1})
	s.respond(*req.ID, protocol.CallToolResult{})
	roundTrip(t, c)

	mu.Lock()
	assert.Equal(t, 0, calls, "progress after cancellation is ignored")
	mu.Unlock()
	assert.Equal(t, 0, c.progress.len())
	assert.Equal(t, 0, c.pending.len())
	assert.NoError(t, c.Err())
}

func TestRequestTimeout(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	s.handle(protocol.MethodCallTool, holdHandler)
	c := initialized(t, tr, WithRequestTimeout(20*time.Millisecond))

	_, err := c.CallTool(context.Background(), "slow", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryTimeout))
	s.next(protocol.MethodCancelled)
}

func TestTransportEndFailsPendingCalls(t *testing.T) {
	tr := newScriptedTransport()
	c := newTestClient(t, tr)

	initErr := make(chan error, 1)
	go func() {
		_, err := c.Initialize(context.Background())
		initErr <- err
	}()
	req := tr.nextSent(t)
	require.Equal(t, protocol.MethodInitialize, req.Method)
	resp, err := protocol.NewResponse(*req.ID, protocol.InitializeResult{
		ProtocolVersion: protocol.LatestProtocolVersion,
		ServerInfo:      protocol.Implementation{Name: "scripted", Version: "1"},
	})
	require.NoError(t, err)
	tr.push(resp)
	require.NoError(t, <-initErr)
	assert.Equal(t, protocol.MethodInitialized, tr.nextSent(t).Method)

	errs := make(chan error, 2)
	for _, name := range []string{"one", "two"} {
		go func(name string) {
			_, err := c.CallTool(context.Background(), name, nil, nil)
			errs <- err
		}(name)
	}
	first := tr.nextSent(t)
	tr.nextSent(t)

	tr.fail(io.EOF)
	late, err := protocol.NewResponse(*first.ID, protocol.CallToolResult{})
	require.NoError(t, err)
	tr.push(late)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, mcperrors.ErrTransportClosed)
			var transportErr *mcperrors.TransportError
			assert.True(t, errors.As(err, &transportErr))
		case <-time.After(waitTimeout):
			t.Fatal("pending call was not failed")
		}
	}

	<-c.Done()
	assert.ErrorIs(t, c.Err(), mcperrors.ErrTransportClosed)
	assert.ErrorIs(t, c.Err(), io.EOF)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, tr.incoming, 1, "frames after termination are never read")

	_, err = c.CallTool(context.Background(), "three", nil, nil)
	assert.ErrorIs(t, err, mcperrors.ErrTransportClosed)
}

func TestCloseEndsSession(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{}})
	s.handle(protocol.MethodListTools, toolsHandler(toolA))
	s.handle(protocol.MethodCallTool, holdHandler)
	c := initialized(t, tr)
	waitForKind(t, c.Tools(), StatusSupported)

	sub := c.Tools().Subscribe()
	receive(t, sub)

	errc := make(chan error, 1)
	go func() {
		_, err := c.CallTool(context.Background(), "slow", nil, nil)
		errc <- err
	}()
	s.next(protocol.MethodCallTool)

	require.NoError(t, c.Close())

	assert.ErrorIs(t, <-errc, mcperrors.ErrTransportClosed)
	_, open := <-sub.C()
	assert.False(t, open, "subscriptions complete on close")
	assert.Equal(t, StatusSupported, c.Tools().Value().Kind(), "last value survives close")

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	require.NoError(t, c.Close(), "Close is idempotent")
}

func TestUndecodableFramesAreSkipped(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	c := initialized(t, tr)

	require.NoError(t, s.tr.SendRaw(context.Background(), []byte(`{"not":"jsonrpc"}`)))
	require.NoError(t, s.tr.SendRaw(context.Background(), []byte(`{`)))
	s.respond(protocol.NumberID(999), protocol.EmptyResult{})

	roundTrip(t, c)
	assert.NoError(t, c.Err())
}

func TestLogNotificationsReachHandler(t *testing.T) {
	s, tr := newFakeServer(t, protocol.ServerCapabilities{Logging: &protocol.LoggingCapability{}})
	entries := make(chan protocol.LogMessageParams, 1)
	c := initialized(t, tr, WithLogHandler(func(p protocol.LogMessageParams) { entries <- p }))

	s.notify(protocol.MethodLog, protocol.LogMessageParams{
		Level:  protocol.LoggingLevelWarning,
		Logger: "db",
		Data:   json.RawMessage(`"slow query"`),
	})
	roundTrip(t, c)

	entry := <-entries
	assert.Equal(t, protocol.LoggingLevelWarning, entry.Level)
	assert.Equal(t, "slow query", entry.DataString())
}

func TestNotifyRootsListChanged(t *testing.T) {
	_, tr := newFakeServer(t, protocol.ServerCapabilities{})
	c := initialized(t, tr)
	err := c.NotifyRootsListChanged(context.Background())
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilityNotSupported))

	s, tr := newFakeServer(t, protocol.ServerCapabilities{})
	c = initialized(t, tr, WithRootsHandler(func(context.Context) ([]protocol.Root, error) { return nil, nil }))
	require.NoError(t, c.NotifyRootsListChanged(context.Background()))
	s.next(protocol.MethodRootsChanged)
}
