package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/session"
)

type RecordSampleArgs struct {
	DurationMs int64 `json:"duration_ms,omitempty" jsonschema:"description=How long to record in milliseconds; clamped to the configured min/max. Omit to record until the ceiling."`
}

type RecorderStatusArgs struct{}

type ResetRecorderArgs struct{}

type ListDevicesArgs struct{}

func (s *Server) handleRecordSample(ctx context.Context, req *sdk.CallToolRequest, args RecordSampleArgs) (*sdk.CallToolResult, any, error) {
	if err := s.ctrl.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start recording: %w", err)
	}

	// A requested duration is clamped into the configured window; no
	// request means recording runs to the ceiling and auto-stops.
	if args.DurationMs > 0 {
		want := time.Duration(args.DurationMs) * time.Millisecond
		if want < s.config.Session.MinDuration {
			want = s.config.Session.MinDuration
		}
		if want > s.config.Session.MaxDuration {
			want = s.config.Session.MaxDuration
		}

		select {
		case <-ctx.Done():
			s.ctrl.Reset()
			return nil, nil, ctx.Err()
		case <-time.After(want):
		}
		// Auto-stop may have beaten us to it; a rejected stop here
		// just means the session already settled.
		_, _ = s.ctrl.Stop()
	}

	if st := s.waitForOutcome(ctx); st == session.StateFailed {
		return nil, nil, fmt.Errorf("recording failed: %w", s.ctrl.Err())
	}

	res := s.ctrl.Result()
	if res == nil {
		return nil, nil, fmt.Errorf("recording produced no sample")
	}

	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: base64.StdEncoding.EncodeToString(res.Artifact)},
			&sdk.TextContent{Text: fmt.Sprintf("Media type: %s, Duration: %dms, Bytes: %d",
				res.MediaType, res.DurationMs, len(res.Artifact))},
		},
	}, nil, nil
}

func (s *Server) handleRecorderStatus(ctx context.Context, req *sdk.CallToolRequest, args RecorderStatusArgs) (*sdk.CallToolResult, any, error) {
	snap := s.ctrl.Snapshot()

	text := fmt.Sprintf("State: %s, Elapsed: %dms", snap.State, snap.Elapsed.Milliseconds())
	if snap.Err != nil {
		text += fmt.Sprintf(", Error: %v", snap.Err)
	}

	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}, nil, nil
}

func (s *Server) handleResetRecorder(ctx context.Context, req *sdk.CallToolRequest, args ResetRecorderArgs) (*sdk.CallToolResult, any, error) {
	s.ctrl.Reset()

	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: "Recorder reset to idle"}},
	}, nil, nil
}

func (s *Server) handleListDevices(ctx context.Context, req *sdk.CallToolRequest, args ListDevicesArgs) (*sdk.CallToolResult, any, error) {
	devices, err := audio.ListDevices()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list devices: %w", err)
	}

	content := []sdk.Content{
		&sdk.TextContent{Text: fmt.Sprintf("Capture devices (%d):", len(devices))},
	}

	for _, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [default]"
		}
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("- %s%s", device.Name, marker)})
	}

	return &sdk.CallToolResult{Content: content}, nil, nil
}
