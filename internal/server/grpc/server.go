package grpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/session"
)

// Server wraps the gRPC server and the recorder service
type Server struct {
	grpcServer *grpc.Server
	ctrl       *session.Controller
	port       int
}

// Config holds server configuration
type Config struct {
	Port    int
	Session session.Config
}

// NewServer creates a new gRPC server
func NewServer(cfg Config) (*Server, error) {
	ctrl := session.New(cfg.Session, audio.NewMalgoAcquirer())

	s := &Server{
		grpcServer: grpc.NewServer(),
		ctrl:       ctrl,
		port:       cfg.Port,
	}

	// Register services
	recorderService := NewRecorderService(ctrl)
	RegisterRecorderServer(s.grpcServer, recorderService)

	return s, nil
}

// Start starts the gRPC server
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	fmt.Printf("gRPC server listening on :%d\n", s.port)
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
	s.ctrl.Reset()
}

// RegisterRecorderServer is a placeholder until proto is generated
func RegisterRecorderServer(s *grpc.Server, srv *RecorderService) {
	// Will be replaced by generated code: verispb.RegisterRecorderServer(s, srv)
}
