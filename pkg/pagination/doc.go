// Package pagination follows MCP's opaque cursors across list results.
//
// MCP list operations (tools/list, prompts/list, resources/list and
// resources/templates/list) return at most one page per call together with an
// optional nextCursor. Clients repeat the request with that cursor until the
// server stops returning one.
//
// # Collecting Every Page
//
//	tools, err := pagination.CollectAll(ctx, 0, func(ctx context.Context, cursor string) (pagination.Page[protocol.Tool], error) {
//	    var result protocol.ListToolsResult
//	    params := protocol.ListToolsParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
//	    if err := call(ctx, protocol.MethodListTools, params, &result); err != nil {
//	        return pagination.Page[protocol.Tool]{}, err
//	    }
//	    return pagination.Page[protocol.Tool]{Items: result.Tools, NextCursor: result.NextCursor}, nil
//	})
//
// A server that hands back a cursor it already returned, or that never stops
// paginating, ends the loop with ErrCursorLoop or ErrTooManyPages instead of
// spinning forever.
package pagination
