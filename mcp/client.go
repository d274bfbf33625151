package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	globalconfig "maimaibot/config"
)

const (
	clientName    = "MaiMaiBot"
	clientVersion = "1.0.0"
)

// Client performs one authenticated tool invocation per call against the
// remote service over streamable HTTP. It holds no session between calls:
// each invocation connects, initializes with the declared protocol version,
// executes the tool and closes the connection. Retry and caching policy
// belong to the caller.
type Client struct {
	serverURL       string
	token           string
	protocolVersion string
	timeout         time.Duration
}

func New(serverURL, token, protocolVersion string, timeout time.Duration) *Client {
	return &Client{
		serverURL:       serverURL,
		token:           token,
		protocolVersion: protocolVersion,
		timeout:         timeout,
	}
}

func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.token,
	}

	mcpClient, err := client.NewStreamableHttpClient(c.serverURL,
		transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	defer mcpClient.Close()

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, classifyCallError("start", err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: c.protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return nil, classifyCallError("initialize", err)
	}

	switch {
	case globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[MCP] Calling tool '%s' at %s (protocol %s)",
			name, c.serverURL, c.protocolVersion)
	}

	res, err := mcpClient.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, classifyCallError("call", err)
	}

	if res.IsError {
		return nil, &ToolError{Tool: name, Detail: ErrorText(res)}
	}

	return ConvertResult(res), nil
}
