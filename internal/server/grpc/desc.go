package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/glucokeeper/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "glucokeeper.v1.GlucoKeeper"

// FullMethod returns "/glucokeeper.v1.GlucoKeeper/<name>".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// API is the set of RPCs served by Server. Every request and response is a Struct.
type API interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTokens(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeTokens(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSamples(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLatestSamples(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAverageDay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRawData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutRawData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHourTrend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDayTrend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMonthTrend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAllStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGoals(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateGoal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateGoal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteGoal(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpc func(API, context.Context, *structpb.Struct) (*structpb.Struct, error)

type method struct {
	name   string
	call   rpc
	public bool
	scopes []model.Capability
}

var methods = []method{
	{name: "Register", call: API.Register, public: true},
	{name: "IssueToken", call: API.IssueToken, public: true},
	{name: "ListTokens", call: API.ListTokens, scopes: []model.Capability{model.CapProfile, model.CapSamples, model.CapGoals, model.CapStats}},
	{name: "RevokeTokens", call: API.RevokeTokens, scopes: []model.Capability{model.CapProfile}},
	{name: "GetProfile", call: API.GetProfile, scopes: []model.Capability{model.CapProfile}},
	{name: "DeleteAccount", call: API.DeleteAccount, scopes: []model.Capability{model.CapProfile, model.CapSamples, model.CapGoals}},
	{name: "GetSamples", call: API.GetSamples, scopes: []model.Capability{model.CapSamples}},
	{name: "GetLatestSamples", call: API.GetLatestSamples, scopes: []model.Capability{model.CapSamples}},
	{name: "GetAverageDay", call: API.GetAverageDay, scopes: []model.Capability{model.CapSamples}},
	{name: "GetRawData", call: API.GetRawData, scopes: []model.Capability{model.CapSamples}},
	{name: "PutRawData", call: API.PutRawData, scopes: []model.Capability{model.CapSamples}},
	{name: "GetHourTrend", call: API.GetHourTrend, scopes: []model.Capability{model.CapSamples}},
	{name: "GetDayTrend", call: API.GetDayTrend, scopes: []model.Capability{model.CapSamples}},
	{name: "GetMonthTrend", call: API.GetMonthTrend, scopes: []model.Capability{model.CapSamples}},
	{name: "GetUserStats", call: API.GetUserStats, scopes: []model.Capability{model.CapStats}},
	{name: "GetAllStats", call: API.GetAllStats, scopes: []model.Capability{model.CapStats}},
	{name: "ListGoals", call: API.ListGoals, scopes: []model.Capability{model.CapGoals}},
	{name: "CreateGoal", call: API.CreateGoal, scopes: []model.Capability{model.CapGoals}},
	{name: "UpdateGoal", call: API.UpdateGoal, scopes: []model.Capability{model.CapGoals}},
	{name: "DeleteGoal", call: API.DeleteGoal, scopes: []model.Capability{model.CapGoals}},
}

// access describes what a full method name requires.
type access struct {
	public bool
	scopes []model.Capability
}

var accessByMethod = func() map[string]access {
	out := make(map[string]access, len(methods))
	for _, m := range methods {
		out[FullMethod(m.name)] = access{public: m.public, scopes: m.scopes}
	}
	return out
}()

// Register attaches the GlucoKeeper service to a gRPC server.
func Register(server grpc.ServiceRegistrar, api API) {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*API)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "glucokeeper/v1/glucokeeper.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: m.name, Handler: handler(m)})
	}
	server.RegisterService(desc, api)
}

func handler(m method) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	full := FullMethod(m.name)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		api := srv.(API)
		if interceptor == nil {
			return m.call(api, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		h := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return m.call(api, ctx, typed)
		}
		return interceptor(ctx, req, info, h)
	}
}
