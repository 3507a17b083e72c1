package gnmi

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	gpb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	// Addr is the host:port to listen on, e.g. "[::]:9339".
	Addr string

	// CertFile and KeyFile hold the server's TLS certificate and private
	// key. Client certificates are accepted but not verified by agent
	// logic.
	CertFile string
	KeyFile  string

	// MaxWorkers bounds concurrently served streams per connection
	// (default 10).
	MaxWorkers uint32
}

// Server wraps the gRPC server hosting the gNMI service.
type Server struct {
	grpc   *grpc.Server
	addr   string
	logger *slog.Logger
}

// NewServer builds a TLS-secured gRPC server and registers the gNMI service
// on it.
func NewServer(cfg ServerConfig, svc gpb.GNMIServer, logger *slog.Logger) (*Server, error) {
	creds, err := credentials.NewServerTLSFromFile(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS credentials: %w", err)
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers == 0 {
		maxWorkers = 10
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.MaxConcurrentStreams(maxWorkers),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
		grpc.ChainStreamInterceptor(streamLoggingInterceptor(logger)),
	)
	gpb.RegisterGNMIServer(grpcServer, svc)

	return &Server{
		grpc:   grpcServer,
		addr:   cfg.Addr,
		logger: logger,
	}, nil
}

// Serve listens and serves until Stop is called or the listener fails.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.logger.Info("starting gNMI server", "addr", s.addr)
	return s.grpc.Serve(lis)
}

// Stop drains in-flight RPCs and shuts the server down. New RPCs are
// rejected immediately; in-flight Sets run to completion or timeout.
func (s *Server) Stop() {
	s.logger.Info("stopping gNMI server")
	s.grpc.GracefulStop()
}

// loggingInterceptor logs unary RPC calls.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		logger.Debug("rpc call", "method", info.FullMethod)
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Error("rpc error", "method", info.FullMethod, "error", err)
		}
		return resp, err
	}
}

// streamLoggingInterceptor logs streaming RPC calls.
func streamLoggingInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		logger.Debug("stream started", "method", info.FullMethod)
		err := handler(srv, ss)
		if err != nil {
			logger.Error("stream error", "method", info.FullMethod, "error", err)
		}
		return err
	}
}
