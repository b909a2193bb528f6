package mcp

// MCP protocol types (JSON-RPC 2.0, Streamable HTTP without SSE).

// ProtocolVersion is the version assumed when the client sends none.
const ProtocolVersion = "2025-03-26"

// SupportedProtocolVersions are accepted in MCP-Protocol-Version.
var SupportedProtocolVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18"}

// Resource describes one readable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceList is the resources/list result.
type ResourceList struct {
	Resources []Resource `json:"resources"`
}

// ResourceContent is the payload of a resources/read result.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// ResourceReadResult wraps resource contents per the MCP schema.
type ResourceReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

// Tool describes one callable tool with its JSON-Schema input.
type Tool struct {
	Name        string                 `json:"name"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolList is the tools/list result.
type ToolList struct {
	Tools []Tool `json:"tools"`
}

// ToolResult is the tools/call result.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one block of tool or resource output.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      interface{}            `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// InitializeResult answers the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
}

// ServerInfo identifies this server to MCP clients.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolError is the structured error payload embedded in failed tool calls
// so agents can react to stable codes and contextual identifiers.
type ToolError struct {
	Error                     string   `json:"error"`
	Message                   string   `json:"message"`
	PaperID                   string   `json:"paper_id,omitempty"`
	Template                  string   `json:"template,omitempty"`
	AvailableSummaryTemplates []string `json:"available_summary_templates,omitempty"`
}
