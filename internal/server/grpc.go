package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// ServiceName is the fully qualified gRPC name of the extraction service.
const ServiceName = "invoice.v1.ExtractionService"

// RequestIDHeader is the metadata key carrying a caller-supplied request id.
const RequestIDHeader = "x-request-id"

// ExtractionServer is the server API for the extraction service. Every method takes and
// returns a google.protobuf.Struct.
type ExtractionServer interface {
	ExtractDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtractText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UploadDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvoices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportInvoices(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExtractionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ExtractionServiceDesc describes the extraction service for grpc.Server.RegisterService.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ExtractDocument", ExtractionServer.ExtractDocument),
		unaryMethod("ExtractText", ExtractionServer.ExtractText),
		unaryMethod("UploadDocument", ExtractionServer.UploadDocument),
		unaryMethod("IngestDirectory", ExtractionServer.IngestDirectory),
		unaryMethod("GetFile", ExtractionServer.GetFile),
		unaryMethod("DeleteFile", ExtractionServer.DeleteFile),
		unaryMethod("GetInvoice", ExtractionServer.GetInvoice),
		unaryMethod("ListInvoices", ExtractionServer.ListInvoices),
		unaryMethod("UpdateInvoice", ExtractionServer.UpdateInvoice),
		unaryMethod("ExportInvoices", ExtractionServer.ExportInvoices),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoice/v1/extraction.proto",
}

// FullMethod returns the invoke path of an extraction service method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// NewGRPCServer builds a gRPC server with the extraction service, the health service and
// reflection registered. The returned health server reports SERVING.
func NewGRPCServer(svc ExtractionServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)

	s.RegisterService(&ExtractionServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl
	reflection.Register(s)
	return s, hs
}

// UnaryInterceptor tags each call with a request id and a scoped logger, converts returned
// errors to status errors and logs the outcome.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := requestID(ctx)
		log := logger.With("method", info.FullMethod, "request_id", reqID)
		ctx = common.WithLogger(common.WithRequestID(ctx, reqID), log)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		resp, err := handler(ctx, req)
		err = common.ToStatus(err)
		code := status.Code(err)
		if err != nil {
			log.Warn("grpc.request.failed", "code", code.String(), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
		log.Info("grpc.request.ok", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}
