package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/mcp"
)

// MCPHandler handles MCP protocol requests at POST /mcp. The transport is
// Streamable HTTP without SSE: one JSON-RPC request per POST, stateless.
type MCPHandler struct {
	service        *mcp.PaperService
	logger         arbor.ILogger
	allowedOrigins []string
}

// NewMCPHandler creates a new MCP handler.
func NewMCPHandler(service *mcp.PaperService, logger arbor.ILogger, allowedOrigins []string) *MCPHandler {
	return &MCPHandler{
		service:        service,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// HandleRPC handles JSON-RPC 2.0 requests.
func (h *MCPHandler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r.Header.Get("Origin")) {
		h.sendError(w, nil, mcp.InvalidRequest, "Origin not allowed", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		h.sendError(w, nil, mcp.InvalidRequest, "Method must be POST", http.StatusMethodNotAllowed)
		return
	}
	if v := r.Header.Get("MCP-Protocol-Version"); v != "" && !protocolVersionSupported(v) {
		h.sendError(w, nil, mcp.InvalidRequest, fmt.Sprintf("Unsupported protocol version: %s", v), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendError(w, nil, mcp.ParseError, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req mcp.JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.sendError(w, nil, mcp.ParseError, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.JSONRPC != "2.0" {
		h.sendError(w, req.ID, mcp.InvalidRequest, "Invalid JSON-RPC version", http.StatusBadRequest)
		return
	}

	h.logger.Debug().Str("method", req.Method).Msg("MCP RPC request")

	switch {
	case req.Method == "initialize":
		h.sendSuccess(w, req.ID, h.service.Initialize())
	case req.Method == "ping":
		h.sendSuccess(w, req.ID, map[string]interface{}{})
	case strings.HasPrefix(req.Method, "notifications/"):
		// Notifications carry no id and expect no body.
		w.WriteHeader(http.StatusAccepted)
	case req.Method == "tools/list":
		h.sendSuccess(w, req.ID, h.service.ListTools())
	case req.Method == "tools/call":
		h.handleCallTool(w, r, req)
	case req.Method == "resources/list":
		h.sendSuccess(w, req.ID, h.service.ListResources())
	case req.Method == "resources/read":
		h.handleReadResource(w, r, req)
	default:
		h.sendError(w, req.ID, mcp.MethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method), http.StatusNotFound)
	}
}

func (h *MCPHandler) handleCallTool(w http.ResponseWriter, r *http.Request, req mcp.JSONRPCRequest) {
	name, ok := req.Params["name"].(string)
	if !ok {
		h.sendError(w, req.ID, mcp.InvalidParams, "Missing or invalid 'name' parameter", http.StatusBadRequest)
		return
	}
	args, ok := req.Params["arguments"].(map[string]interface{})
	if !ok {
		args = make(map[string]interface{})
	}

	result, err := h.service.CallTool(r.Context(), name, args)
	if err != nil {
		h.sendError(w, req.ID, mcp.InvalidParams, err.Error(), http.StatusBadRequest)
		return
	}
	h.sendSuccess(w, req.ID, result)
}

func (h *MCPHandler) handleReadResource(w http.ResponseWriter, r *http.Request, req mcp.JSONRPCRequest) {
	uri, ok := req.Params["uri"].(string)
	if !ok {
		h.sendError(w, req.ID, mcp.InvalidParams, "Missing or invalid 'uri' parameter", http.StatusBadRequest)
		return
	}

	result, err := h.service.ReadResource(r.Context(), uri)
	if err != nil {
		if errors.Is(err, models.ErrInvalidQuery) {
			h.sendError(w, req.ID, mcp.InvalidParams, err.Error(), http.StatusBadRequest)
			return
		}
		h.sendError(w, req.ID, mcp.InternalError, err.Error(), http.StatusInternalServerError)
		return
	}
	h.sendSuccess(w, req.ID, result)
}

func (h *MCPHandler) originAllowed(origin string) bool {
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func protocolVersionSupported(version string) bool {
	for _, v := range mcp.SupportedProtocolVersions {
		if v == version {
			return true
		}
	}
	return false
}

func (h *MCPHandler) sendSuccess(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *MCPHandler) sendError(w http.ResponseWriter, id interface{}, code int, message string, httpStatus int) {
	resp := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &mcp.RPCError{
			Code:    code,
			Message: message,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
