package grpc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/rpc"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Authenticate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.AuthenticateRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	token, err := s.devices.Authenticate(ctx, req.DeviceID, req.Secret)
	if err != nil {
		return nil, s.toStatus(ctx, "authenticate", err)
	}

	s.logger.Info(ctx, "device authenticated", "device_id", req.DeviceID)
	return encode(rpc.AuthenticateResponse{AccessToken: token})
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(rpc.PingResponse{Status: "OK"})
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.GetRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec, err := s.records.Get(ctx, req.Table, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "get", err)
	}
	return encodeRecord(rec)
}

func (s *GRPCServer) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.InsertRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	deviceID, _ := DeviceIDFromContext(ctx)

	rec, err := s.records.Insert(ctx, deviceID, req.Table, req.OriginID, req.Payload)
	if err != nil {
		return nil, s.toStatus(ctx, "insert", err)
	}
	return encodeRecord(rec)
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.UpdateRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	deviceID, _ := DeviceIDFromContext(ctx)

	rec, err := s.records.Update(ctx, deviceID, req.Table, req.ID, req.Payload)
	if err != nil {
		return nil, s.toStatus(ctx, "update", err)
	}
	return encodeRecord(rec)
}

func (s *GRPCServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.DeleteRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	deviceID, _ := DeviceIDFromContext(ctx)

	if err := s.records.Delete(ctx, deviceID, req.Table, req.ID); err != nil {
		return nil, s.toStatus(ctx, "delete", err)
	}
	return &structpb.Struct{}, nil
}

// toStatus maps service errors onto gRPC codes. Anything unexpected is
// logged and reported as Internal without its details.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case storageUnavailable(err):
		s.logger.Warn(ctx, "storage unavailable", "op", op, "err", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	}
	s.logger.Error(ctx, "request failed", "op", op, "err", err)
	return status.Error(codes.Internal, "internal error")
}

// storageUnavailable reports failures to reach the database. Devices retry
// those instead of treating the request as rejected.
func storageUnavailable(err error) bool {
	var (
		netErr  net.Error
		connErr *pgconn.ConnectError
	)
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &connErr) ||
		errors.As(err, &netErr)
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func encodeRecord(r *models.Record) (*structpb.Struct, error) {
	return encode(rpc.Record{ID: r.ID, Code: r.Code, Data: r.Payload, UpdatedAt: r.UpdatedAt})
}
