package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/history"
	"tools.zach/dev/cordpush/internal/timer"
)

// Error codes reported in tool error payloads.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotConnected     = "NOT_CONNECTED"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeInternal         = "INTERNAL"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sess *app.Session
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *app.Session) *Handlers {
	return &Handlers{sess: sess}
}

// Request types for each tool

// ConnectRequest represents the arguments for presence_connect.
type ConnectRequest struct {
	Identity string `json:"identity,omitempty"`
}

// UpdateRequest represents the arguments for presence_update.
type UpdateRequest struct {
	app.Form
	// Elapsed, when set, replaces the hours, minutes and seconds fields.
	Elapsed string `json:"elapsed,omitempty"`
}

// ResetTimerRequest represents the arguments for presence_reset_timer.
type ResetTimerRequest struct {
	Elapsed string `json:"elapsed,omitempty"`
}

// HistoryRequest represents the arguments for presence_history.
type HistoryRequest struct {
	Field  string `json:"field,omitempty"`
	Action string `json:"action,omitempty"`
}

// HistoryResponse lists history values per field.
type HistoryResponse struct {
	State   []string `json:"state,omitempty"`
	Details []string `json:"details,omitempty"`
}

// ///////////////////////////////////////////////
// Handlers
// ///////////////////////////////////////////////

// HandleConnect implements presence_connect.
func (h *Handlers) HandleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConnectRequest](req)
	if err != nil {
		return invalidRequest(err.Error()), nil
	}
	identity := strings.TrimSpace(input.Identity)
	if identity == "" {
		identity = h.sess.DefaultIdentity()
	}
	out, err := h.sess.Connect(identity)
	if err != nil {
		return errorResult(err, out.Status), nil
	}
	return successResult(out)
}

// HandleDisconnect implements presence_disconnect.
func (h *Handlers) HandleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.sess.Disconnect())
}

// HandleUpdate implements presence_update.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return invalidRequest(err.Error()), nil
	}
	form := input.Form
	switch {
	case input.Elapsed != "":
		secs, err := timer.ParseHMS(input.Elapsed)
		if err != nil {
			return invalidRequest(err.Error()), nil
		}
		form.Hours, form.Minutes, form.Seconds = 0, 0, secs
	case !hasTiming(req.GetArguments()):
		// No timing arguments: carry the running value so it is not an edit.
		form = form.WithElapsed(h.sess.View().Timer)
	}

	out, err := h.sess.Publish(form)
	if err != nil {
		return errorResult(err, out.Status), nil
	}
	return successResult(out)
}

// timingArgs are the presence_update arguments that set the elapsed time.
var timingArgs = []string{"elapsed", "hours", "minutes", "seconds"}

// hasTiming reports whether args carries any timing argument.
func hasTiming(args map[string]any) bool {
	for _, k := range timingArgs {
		if v, ok := args[k]; ok && v != nil {
			return true
		}
	}
	return false
}

// HandleResetTimer implements presence_reset_timer.
func (h *Handlers) HandleResetTimer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResetTimerRequest](req)
	if err != nil {
		return invalidRequest(err.Error()), nil
	}
	if input.Elapsed == "" {
		return successResult(h.sess.ResetTimer())
	}
	secs, err := timer.ParseHMS(input.Elapsed)
	if err != nil {
		return invalidRequest(err.Error()), nil
	}
	return successResult(h.sess.EditElapsed(0, 0, secs))
}

// HandleClear implements presence_clear.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := h.sess.ClearPresence()
	if err != nil {
		return errorResult(err, out.Status), nil
	}
	return successResult(out)
}

// HandleHistory implements presence_history.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return invalidRequest(err.Error()), nil
	}

	fields := history.Fields
	if input.Field != "" {
		f, err := history.ParseField(input.Field)
		if err != nil {
			return invalidRequest(err.Error()), nil
		}
		fields = []history.Field{f}
	}

	switch input.Action {
	case "", "list":
	case "clear":
		for _, f := range fields {
			if _, err := h.sess.ClearHistory(f); err != nil {
				return errorResult(err, ""), nil
			}
		}
	default:
		return invalidRequest(`action must be "list" or "clear"`), nil
	}

	var resp HistoryResponse
	for _, f := range fields {
		entries, err := h.sess.History(f)
		if err != nil {
			return errorResult(err, ""), nil
		}
		if entries == nil {
			entries = []string{}
		}
		switch f {
		case history.FieldState:
			resp.State = entries
		case history.FieldDetails:
			resp.Details = entries
		}
	}
	return successResult(resp)
}

// Result helpers

// errorResult creates an MCP error result. Session sentinel errors and
// transport failures get their own codes; anything else is reported as
// internal without details.
func errorResult(err error, status string) *mcp.CallToolResult {
	code, message := CodeInternal, "an internal error occurred"

	var connErr *app.ConnectionError
	switch {
	case errors.Is(err, app.ErrBlankIdentity):
		code, message = CodeInvalidRequest, err.Error()
	case errors.Is(err, app.ErrNotConnected):
		code, message = CodeNotConnected, err.Error()
	case errors.As(err, &connErr):
		code, message = CodeConnectionFailed, err.Error()
	}

	errorObj := map[string]any{"code": code, "message": message}
	if status != "" {
		errorObj["status"] = status
	}
	return toolError(errorObj)
}

func invalidRequest(message string) *mcp.CallToolResult {
	return toolError(map[string]any{"code": CodeInvalidRequest, "message": message})
}

func toolError(errorObj map[string]any) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
