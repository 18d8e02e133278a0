package gateway

import (
	"context"
	"log"
	"path"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/abdhe/openrouter-go/pkg/metrics"
)

// RequestIDHeader is the response header carrying the per-call request id.
const RequestIDHeader = "x-request-id"

// NewServer returns a gRPC server with the gateway, the standard health
// service and reflection registered. Every call is tagged with a request id
// and recorded in the gateway metrics.
func NewServer(h *Handler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),  // 4MB
		grpc.MaxSendMsgSize(16 * 1024 * 1024), // 16MB
		grpc.ChainUnaryInterceptor(unaryInterceptor),
		grpc.ChainStreamInterceptor(streamInterceptor),
	}, opts...)

	s := grpc.NewServer(opts...)
	RegisterGatewayServer(s, h)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s) // Enable gRPC reflection for grpcurl
	return s
}

func unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	done := begin(ctx, info.FullMethod)
	resp, err := handler(ctx, req)
	done(err)
	return resp, err
}

func streamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	done := begin(ss.Context(), info.FullMethod)
	err := handler(srv, ss)
	done(err)
	return err
}

// begin tags a call with a request id and returns the function that records
// its outcome.
func begin(ctx context.Context, fullMethod string) func(error) {
	start := time.Now()
	method := path.Base(fullMethod)
	id := uuid.NewString()

	if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id)); err != nil {
		log.Printf("[gateway] %s: set header: %v", id, err)
	}
	metrics.ActiveRequests.Inc()

	return func(err error) {
		metrics.ActiveRequests.Dec()
		elapsed := time.Since(start)
		label := "success"
		if err != nil {
			label = status.Code(err).String()
		}
		metrics.ObserveRequest(method, label, elapsed)

		if err != nil && status.Code(err) != codes.Canceled {
			log.Printf("[gateway] %s %s failed after %s: %v", id, method, elapsed, err)
			return
		}
		log.Printf("[gateway] %s %s %s in %s", id, method, label, elapsed)
	}
}
