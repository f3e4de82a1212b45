package grpc

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/emmett/veris/internal/session"
)

// Command names accepted on the control stream
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandReset  = "reset"
	CommandStatus = "status"

	// record starts a session and blocks until it completes or fails,
	// so clients without their own polling get the artifact in one
	// round trip.
	CommandRecord = "record"
)

// outcomePollInterval paces the blocking record command
const outcomePollInterval = 50 * time.Millisecond

// Command is a client instruction for the recorder
type Command struct {
	Name string
}

// StatusUpdate reports the session after a command
type StatusUpdate struct {
	State      string
	ElapsedMs  int64
	DurationMs int64
	Artifact   []byte
	MediaType  string
	Error      string
}

// ControlStream is the bidirectional command/status interface
type ControlStream interface {
	Send(*StatusUpdate) error
	Recv() (*Command, error)
	Context() context.Context
}

// RecorderService drives one session controller over a control stream
type RecorderService struct {
	ctrl *session.Controller
}

// NewRecorderService creates a new recorder service
func NewRecorderService(ctrl *session.Controller) *RecorderService {
	return &RecorderService{ctrl: ctrl}
}

// Control handles a command stream: every received command is applied to the
// session and answered with a status update. When the stream ends any live
// session is reset so the device is never left held.
func (s *RecorderService) Control(stream ControlStream) error {
	ctx := stream.Context()
	defer s.ctrl.Reset()

	for {
		cmd, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		update := s.apply(ctx, cmd)
		if err := stream.Send(update); err != nil {
			return err
		}
	}
}

func (s *RecorderService) apply(ctx context.Context, cmd *Command) *StatusUpdate {
	var cmdErr error

	switch cmd.Name {
	case CommandStart:
		cmdErr = s.ctrl.Start(ctx)
	case CommandRecord:
		if cmdErr = s.ctrl.Start(ctx); cmdErr == nil {
			waitForOutcome(ctx, s.ctrl, outcomePollInterval)
		}
	case CommandStop:
		_, cmdErr = s.ctrl.Stop()
	case CommandReset:
		s.ctrl.Reset()
	case CommandStatus:
		// status is read-only
	default:
		cmdErr = errors.New("unknown command: " + cmd.Name)
	}

	update := &StatusUpdate{
		State:     s.ctrl.State().String(),
		ElapsedMs: s.ctrl.Elapsed().Milliseconds(),
	}

	if res := s.ctrl.Result(); res != nil {
		update.DurationMs = res.DurationMs
		update.Artifact = res.Artifact
		update.MediaType = res.MediaType
	}

	if cmdErr != nil {
		update.Error = cmdErr.Error()
	} else if err := s.ctrl.Err(); err != nil {
		update.Error = err.Error()
	}

	return update
}

// waitForOutcome polls until the session leaves its live states or the
// context ends. Used by callers that issue start and want the final result.
func waitForOutcome(ctx context.Context, ctrl *session.Controller, poll time.Duration) session.State {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		switch st := ctrl.State(); st {
		case session.StateCompleted, session.StateFailed, session.StateIdle:
			return st
		default:
		}

		select {
		case <-ctx.Done():
			return ctrl.State()
		case <-ticker.C:
		}
	}
}
