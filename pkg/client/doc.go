// Package client is the client side of an MCP session.
//
// A Client owns one session with one server over a transport.Transport. It
// performs the initialize handshake, keeps live views of the tools, prompts,
// resources and resource templates the server offers, correlates concurrent
// calls with their responses, routes progress notifications to the calls that
// asked for them, and answers the requests a server sends back (roots/list,
// sampling/createMessage, ping).
//
// # Creating a Client
//
//	c, err := client.NewCommandClient("my-mcp-server", nil,
//	    client.WithName("ExampleClient"),
//	    client.WithVersion("1.0.0"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	info, err := c.Initialize(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("connected to %s %s\n", info.Name, info.Version)
//
// Every request method fails with errors.ErrNotInitialized until Initialize
// succeeds. When the transport ends, pending and later calls fail with a
// *errors.TransportError and Done is closed.
//
// # Capability Views
//
// Tools, Prompts, Resources and ResourceTemplates return subjects holding a
// CapabilityStatus. A capability the server did not declare is Unsupported
// for the whole session. A declared one starts Pending and becomes Supported
// once its list is fetched; list_changed notifications re-fetch it.
//
//	sub := c.Tools().Subscribe()
//	defer sub.Unsubscribe()
//	for status := range sub.C() {
//	    if status.IsSupported() {
//	        fmt.Println(len(status.List()), "tools")
//	    }
//	}
//
// # Calling Tools
//
// CallTool returns a *errors.ToolCallError when the tool reports isError, so
// application failures and transport failures are told apart with errors.As:
//
//	result, err := c.CallTool(ctx, "search", map[string]string{"q": "go"},
//	    func(progress float64, total *float64, message string) {
//	        fmt.Println("progress", protocol.FormatProgress(progress, total))
//	    })
//	var toolErr *errors.ToolCallError
//	if errors.As(err, &toolErr) {
//	    // the tool ran and failed
//	}
package client
