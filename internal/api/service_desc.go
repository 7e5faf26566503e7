package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "mirador.recall.v1.IncidentRecall"

	ingestMethod = "/" + ServiceName + "/Ingest"
	searchMethod = "/" + ServiceName + "/Search"
	healthMethod = "/" + ServiceName + "/Health"
)

// RecallServer is the server API for the IncidentRecall service.
type RecallServer interface {
	Ingest(context.Context, *IngestRequest) (*IngestResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

// RegisterRecallServer attaches srv to a gRPC service registrar.
func RegisterRecallServer(s grpc.ServiceRegistrar, srv RecallServer) {
	s.RegisterService(&recallServiceDesc, srv)
}

var recallServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecallServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ingest", Handler: ingestHandler},
		{MethodName: "Search", Handler: searchHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/recall/v1/recall.json",
}

func ingestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IngestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecallServer).Ingest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ingestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecallServer).Ingest(ctx, req.(*IngestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func searchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecallServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: searchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecallServer).Search(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecallServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: healthMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecallServer).Health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}
