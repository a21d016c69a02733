package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultCallTimeout = 15 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.RemoteStoreClient
	callTimeout time.Duration

	deviceID string
	secret   string

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) setToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// accessTokenInterceptor adds the access token to outgoing calls. When the
// server answers Unauthenticated it authenticates once more with the device
// credentials and repeats the call.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == rpc.MethodAuthenticate || method == rpc.MethodPing {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated {
		return err
	}
	if s.secret == "" {
		return err
	}

	if authErr := s.Authenticate(ctx); authErr != nil {
		return err
	}
	return invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
}

// NewGRPCClient creates a client for endpointURL. No connection is made until
// the first call.
func NewGRPCClient(endpointURL, deviceID, secret string) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL: endpointURL,
		deviceID:    deviceID,
		secret:      secret,
		callTimeout: defaultCallTimeout,
	}
	conn, err := grpc.NewClient(c.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewRemoteStoreClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *GRPCClient) Authenticate(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in, err := rpc.Encode(rpc.AuthenticateRequest{DeviceID: s.deviceID, Secret: s.secret})
	if err != nil {
		return err
	}
	out, err := s.client.Authenticate(ctx, in)
	if err != nil {
		return s.mapError(err)
	}

	var resp rpc.AuthenticateResponse
	if err := rpc.Decode(out, &resp); err != nil {
		return err
	}
	s.setToken(resp.AccessToken)
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}

	var resp rpc.PingResponse
	if err := rpc.Decode(out, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Get(ctx context.Context, table, id string) (*models.Record, error) {
	return s.recordCall(ctx, table, s.client.Get, rpc.GetRequest{Table: table, ID: id})
}

func (s *GRPCClient) Insert(ctx context.Context, table, originID string, payload map[string]any) (*models.Record, error) {
	return s.recordCall(ctx, table, s.client.Insert, rpc.InsertRequest{Table: table, OriginID: originID, Payload: payload})
}

func (s *GRPCClient) Update(ctx context.Context, table, id string, payload map[string]any) (*models.Record, error) {
	return s.recordCall(ctx, table, s.client.Update, rpc.UpdateRequest{Table: table, ID: id, Payload: payload})
}

func (s *GRPCClient) Delete(ctx context.Context, table, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in, err := rpc.Encode(rpc.DeleteRequest{Table: table, ID: id})
	if err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, in); err != nil {
		return s.mapError(err)
	}
	return nil
}

type unaryCall func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

func (s *GRPCClient) recordCall(ctx context.Context, table string, call unaryCall, req any) (*models.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in, err := rpc.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRejected, err)
	}
	out, err := call(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var rec rpc.Record
	if err := rpc.Decode(out, &rec); err != nil {
		return nil, err
	}
	return &models.Record{
		Table:   table,
		ID:      rec.ID,
		Code:    rec.Code,
		Data:    rec.Data,
		Tracked: true,
	}, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return common.ErrUnavailable
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrUnauthorized
	default:
		return fmt.Errorf("%w: %s: %s", common.ErrRejected, st.Code(), st.Message())
	}
}
