package mcp

import (
	"context"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/session"
)

type Config struct {
	ServerName    string
	ServerVersion string
	Session       session.Config
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	ctrl      *session.Controller
}

func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		config: cfg,
		ctrl:   session.New(cfg.Session, audio.NewMalgoAcquirer()),
	}

	// Create MCP server
	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	// Register tools
	s.registerTools()

	return s, nil
}

func (s *Server) Start() error {
	return s.mcpServer.Run(context.Background(), &sdk.StdioTransport{})
}

func (s *Server) Stop() error {
	s.ctrl.Reset()
	return nil
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "record_sample",
		Description: "Record a voice sample from the microphone and return it as base64 PCM",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"duration_ms": map[string]string{"type": "integer"},
			},
		},
	}, s.handleRecordSample)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "recorder_status",
		Description: "Report the current recording session state and elapsed time",
	}, s.handleRecorderStatus)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "reset_recorder",
		Description: "Abort any in-flight recording and return the recorder to idle",
	}, s.handleResetRecorder)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "list_devices",
		Description: "List available audio capture devices",
	}, s.handleListDevices)
}

// waitForOutcome blocks until the session settles or the context ends
func (s *Server) waitForOutcome(ctx context.Context) session.State {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		switch st := s.ctrl.State(); st {
		case session.StateCompleted, session.StateFailed, session.StateIdle:
			return st
		default:
		}

		select {
		case <-ctx.Done():
			s.ctrl.Reset()
			return s.ctrl.State()
		case <-ticker.C:
		}
	}
}
