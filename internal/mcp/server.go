// Package mcp exposes ssh-deck session management as MCP (Model
// Context Protocol) tools over stdio, for use by AI agents.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/asheshgoplani/ssh-deck/internal/config"
	"github.com/asheshgoplani/ssh-deck/internal/logging"
	"github.com/asheshgoplani/ssh-deck/internal/session"
	"github.com/asheshgoplani/ssh-deck/internal/validate"
)

var log = logging.ForComponent(logging.CompMCP)

// boolPtr returns a pointer to a bool value. Used for ToolAnnotations fields.
func boolPtr(b bool) *bool { return &b }

// Server wraps the MCP server with ssh-deck session tools.
type Server struct {
	mcpServer *mcp.Server
	manager   *session.Manager

	// cfg is swapped wholesale on reload while handler goroutines are
	// in flight; handlers snapshot it once per call via config().
	cfg atomic.Pointer[config.Config]
}

// NewServer creates an ssh-deck MCP server around an existing session
// manager.
func NewServer(version string, cfg *config.Config, manager *session.Manager) *Server {
	s := &Server{
		manager: manager,
	}
	s.cfg.Store(cfg)

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ssh-deck",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server over stdio. Blocks until the transport
// closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// UpdateConfig swaps the active configuration. Safe to call while
// requests are running.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// cap applies the configured output size ceiling to any text headed
// back to the client.
func (s *Server) cap(text string) string {
	return validate.Cap(text, s.config().Capture.MaxOutputBytes)
}

// registerTools registers all session tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "open_session",
		Description: "Open a new SSH session to a host inside the shared tmux container. Returns the session ID and an initial screen snapshot.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Open SSH Session",
			OpenWorldHint: boolPtr(true),
		},
	}, s.handleOpenSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "send_command",
		Description: "Send a shell command to an open session and return the screen after a short bounded wait. The snapshot may include an advisory hint when a prompt or interactive input request is detected.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Send Command",
			DestructiveHint: boolPtr(true),
			OpenWorldHint:   boolPtr(true),
		},
	}, s.handleSendCommand)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_snapshot",
		Description: "Capture the current visible screen of a session without sending anything. Useful for checking on long-running commands.",
		Annotations: &mcp.ToolAnnotations{
			Title:        "Get Screen Snapshot",
			ReadOnlyHint: true,
		},
	}, s.handleGetSnapshot)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List all currently open sessions with their IDs.",
		Annotations: &mcp.ToolAnnotations{
			Title:        "List Sessions",
			ReadOnlyHint: true,
		},
	}, s.handleListSessions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "close_session",
		Description: "Close a session and return its final screen snapshot.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Close Session",
			DestructiveHint: boolPtr(true),
		},
	}, s.handleCloseSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "read_remote_file",
		Description: "Read a file on the remote host through the session shell. Works over plain SSH with no agent on the remote side.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Read Remote File",
			ReadOnlyHint:  true,
			OpenWorldHint: boolPtr(true),
		},
	}, s.handleReadRemoteFile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "write_remote_file",
		Description: "Write (or append) content to a file on the remote host through the session shell, using base64 transport to avoid quoting issues.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Write Remote File",
			DestructiveHint: boolPtr(true),
			OpenWorldHint:   boolPtr(true),
		},
	}, s.handleWriteRemoteFile)
}

// OpenSessionInput defines the input parameters for the open_session tool.
type OpenSessionInput struct {
	Host string `json:"host" jsonschema:"Hostname, IP address, or ssh_config alias to connect to"`
	User string `json:"user,omitempty" jsonschema:"Remote username (defaults to ssh_config or current user)"`
	Port int    `json:"port,omitempty" jsonschema:"SSH port (defaults to ssh_config or 22)"`
}

// OpenSessionOutput defines the output for the open_session tool.
type OpenSessionOutput struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleOpenSession(ctx context.Context, req *mcp.CallToolRequest, input OpenSessionInput) (*mcp.CallToolResult, OpenSessionOutput, error) {
	if input.Host == "" {
		return nil, OpenSessionOutput{Error: "host is required"}, nil
	}

	id, err := s.manager.Open(ctx, input.Host, input.User, input.Port)
	if err != nil {
		log.Error("open_session_failed", "host", input.Host, "error", err.Error())
		return nil, OpenSessionOutput{Error: fmt.Sprintf("failed to open session: %v", err)}, nil
	}

	snapshot := s.manager.SnapshotWithHints(id, s.config().Capture.Lines)
	return nil, OpenSessionOutput{
		SessionID: id,
		Text:      s.cap(fmt.Sprintf("Session opened. ID: %s\n\nInitial Snapshot:\n%s", id, snapshot)),
	}, nil
}

// SendCommandInput defines the input parameters for the send_command tool.
type SendCommandInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by open_session"`
	Command   string `json:"command" jsonschema:"Shell command to run in the session"`
	Lines     int    `json:"lines,omitempty" jsonschema:"Snapshot tail length in lines (default 40)"`
}

// SendCommandOutput defines the output for the send_command tool.
type SendCommandOutput struct {
	Text    string `json:"text"`
	Blocked bool   `json:"blocked,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleSendCommand(ctx context.Context, req *mcp.CallToolRequest, input SendCommandInput) (*mcp.CallToolResult, SendCommandOutput, error) {
	if input.SessionID == "" {
		return nil, SendCommandOutput{Error: "session_id is required"}, nil
	}

	// The gate runs before anything reaches the remote shell. A blocked
	// command is reported, never sent.
	cfg := s.config()
	ok, reason := validate.Validate(input.Command,
		cfg.Validation.GetCheckDangerous(),
		cfg.Validation.GetPtyAware())
	if !ok {
		log.Warn("command_blocked", "session", input.SessionID, "reason", reason)
		return nil, SendCommandOutput{Text: reason, Blocked: true}, nil
	}

	snapshot, err := s.manager.SendAndAwait(ctx, input.SessionID, input.Command, input.Lines)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, SendCommandOutput{Error: fmt.Sprintf("Error: Session %s not found.", input.SessionID)}, nil
		}
		log.Error("send_command_failed", "session", input.SessionID, "error", err.Error())
		return nil, SendCommandOutput{Error: fmt.Sprintf("failed to send command: %v", err)}, nil
	}

	return nil, SendCommandOutput{Text: s.cap(snapshot)}, nil
}

// GetSnapshotInput defines the input parameters for the get_snapshot tool.
type GetSnapshotInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by open_session"`
	Lines     int    `json:"lines,omitempty" jsonschema:"Snapshot tail length in lines (default 40)"`
}

// GetSnapshotOutput defines the output for the get_snapshot tool.
type GetSnapshotOutput struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleGetSnapshot(ctx context.Context, req *mcp.CallToolRequest, input GetSnapshotInput) (*mcp.CallToolResult, GetSnapshotOutput, error) {
	if input.SessionID == "" {
		return nil, GetSnapshotOutput{Error: "session_id is required"}, nil
	}

	snapshot := s.manager.SnapshotWithHints(input.SessionID, input.Lines)
	return nil, GetSnapshotOutput{Text: s.cap(snapshot)}, nil
}

// ListSessionsInput defines the input parameters for the list_sessions tool.
type ListSessionsInput struct{}

// SessionInfo describes one open session in list output.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Host      string `json:"host,omitempty"`
	User      string `json:"user,omitempty"`
	Port      int    `json:"port,omitempty"`
}

// ListSessionsOutput defines the output for the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []SessionInfo `json:"sessions"`
	Text     string        `json:"text"`
	Error    string        `json:"error,omitempty"`
}

func (s *Server) handleListSessions(ctx context.Context, req *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	infos, err := s.manager.List()
	if err != nil {
		log.Error("list_sessions_failed", "error", err.Error())
		return nil, ListSessionsOutput{Error: fmt.Sprintf("failed to list sessions: %v", err)}, nil
	}

	if len(infos) == 0 {
		return nil, ListSessionsOutput{Sessions: []SessionInfo{}, Text: "No active sessions."}, nil
	}

	sessions := make([]SessionInfo, 0, len(infos))
	var b strings.Builder
	b.WriteString("Active sessions:\n")
	for _, info := range infos {
		sessions = append(sessions, SessionInfo{
			SessionID: info.ID,
			Host:      info.Host,
			User:      info.User,
			Port:      info.Port,
		})
		fmt.Fprintf(&b, "- %s\n", info.ID)
	}

	return nil, ListSessionsOutput{Sessions: sessions, Text: strings.TrimRight(b.String(), "\n")}, nil
}

// CloseSessionInput defines the input parameters for the close_session tool.
type CloseSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by open_session"`
}

// CloseSessionOutput defines the output for the close_session tool.
type CloseSessionOutput struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleCloseSession(ctx context.Context, req *mcp.CallToolRequest, input CloseSessionInput) (*mcp.CallToolResult, CloseSessionOutput, error) {
	if input.SessionID == "" {
		return nil, CloseSessionOutput{Error: "session_id is required"}, nil
	}

	// Final snapshot first; the window is gone after Close.
	snapshot := s.manager.SnapshotWithHints(input.SessionID, s.config().Capture.Lines)

	if err := s.manager.Close(input.SessionID); err != nil {
		log.Error("close_session_failed", "session", input.SessionID, "error", err.Error())
		return nil, CloseSessionOutput{Error: fmt.Sprintf("failed to close session: %v", err)}, nil
	}

	return nil, CloseSessionOutput{
		Text: s.cap(fmt.Sprintf("Session %s closed.\n\nFinal Snapshot:\n%s", input.SessionID, snapshot)),
	}, nil
}

// ReadRemoteFileInput defines the input parameters for the read_remote_file tool.
type ReadRemoteFileInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by open_session"`
	Path      string `json:"path" jsonschema:"Absolute or home-relative path of the remote file"`
}

// ReadRemoteFileOutput defines the output for the read_remote_file tool.
type ReadRemoteFileOutput struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleReadRemoteFile(ctx context.Context, req *mcp.CallToolRequest, input ReadRemoteFileInput) (*mcp.CallToolResult, ReadRemoteFileOutput, error) {
	if input.SessionID == "" {
		return nil, ReadRemoteFileOutput{Error: "session_id is required"}, nil
	}
	if input.Path == "" {
		return nil, ReadRemoteFileOutput{Error: "path is required"}, nil
	}

	content, err := s.manager.ReadFile(ctx, input.SessionID, input.Path)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ReadRemoteFileOutput{Error: fmt.Sprintf("Error: Session %s not found.", input.SessionID)}, nil
		}
		log.Error("read_remote_file_failed", "session", input.SessionID, "path", input.Path, "error", err.Error())
		return nil, ReadRemoteFileOutput{Error: fmt.Sprintf("failed to read file: %v", err)}, nil
	}

	if content == "" {
		return nil, ReadRemoteFileOutput{
			Text: fmt.Sprintf("No content found for %s or file read timed out.", input.Path),
		}, nil
	}

	return nil, ReadRemoteFileOutput{Text: s.cap(content)}, nil
}

// WriteRemoteFileInput defines the input parameters for the write_remote_file tool.
type WriteRemoteFileInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by open_session"`
	Path      string `json:"path" jsonschema:"Absolute or home-relative path of the remote file"`
	Content   string `json:"content" jsonschema:"Content to write"`
	Append    bool   `json:"append,omitempty" jsonschema:"Append instead of overwrite"`
}

// WriteRemoteFileOutput defines the output for the write_remote_file tool.
type WriteRemoteFileOutput struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleWriteRemoteFile(ctx context.Context, req *mcp.CallToolRequest, input WriteRemoteFileInput) (*mcp.CallToolResult, WriteRemoteFileOutput, error) {
	if input.SessionID == "" {
		return nil, WriteRemoteFileOutput{Error: "session_id is required"}, nil
	}
	if input.Path == "" {
		return nil, WriteRemoteFileOutput{Error: "path is required"}, nil
	}

	if err := s.manager.WriteFile(input.SessionID, input.Path, input.Content, input.Append); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, WriteRemoteFileOutput{Error: fmt.Sprintf("Error: Session %s not found.", input.SessionID)}, nil
		}
		log.Error("write_remote_file_failed", "session", input.SessionID, "path", input.Path, "error", err.Error())
		return nil, WriteRemoteFileOutput{Error: fmt.Sprintf("failed to write file: %v", err)}, nil
	}

	return nil, WriteRemoteFileOutput{Text: fmt.Sprintf("Successfully wrote to %s", input.Path)}, nil
}
