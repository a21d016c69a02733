// Package grpc exposes the remote store over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/rpc"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"google.golang.org/grpc"
)

// RecordService is the record logic behind the handlers.
type RecordService interface {
	Get(ctx context.Context, table, id string) (*models.Record, error)
	Insert(ctx context.Context, deviceID, table, originID string, payload map[string]any) (*models.Record, error)
	Update(ctx context.Context, deviceID, table, id string, payload map[string]any) (*models.Record, error)
	Delete(ctx context.Context, deviceID, table, id string) error
}

// DeviceService authenticates devices.
type DeviceService interface {
	Authenticate(ctx context.Context, deviceID, secret string) (string, error)
}

type GRPCServer struct {
	address   string
	records   RecordService
	devices   DeviceService
	logger    logging.Logger
	jwtSecret []byte
}

var _ rpc.RemoteStoreServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, rs RecordService, ds DeviceService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    logging.OrNop(l).With("module", "grpc_server"),
		records:   rs,
		devices:   ds,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterRemoteStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
