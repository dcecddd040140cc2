package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "cellar.v1.VaultService"

// VaultServiceServer is the server API for VaultService
type VaultServiceServer interface {
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redeem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransferFrom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnterStrategy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedeemFromYieldSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Rebalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPause(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Shutdown(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AccruePlatformFee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransferFees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimAndUnstake(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reinvest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Swap(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MultihopSwap(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetInputAsset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLiquidityLimit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveLiquidityRestriction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDepositLimit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVaultSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPosition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BalanceOf(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Allowance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ VaultServiceServer = (*Server)(nil)

type rpcHandler func(s *Server, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// rpcMethods lists every RPC in registration order
var rpcMethods = []struct {
	name    string
	handler rpcHandler
}{
	{"Deposit", (*Server).Deposit},
	{"Withdraw", (*Server).Withdraw},
	{"Redeem", (*Server).Redeem},
	{"Transfer", (*Server).Transfer},
	{"TransferFrom", (*Server).TransferFrom},
	{"Approve", (*Server).Approve},
	{"EnterStrategy", (*Server).EnterStrategy},
	{"RedeemFromYieldSource", (*Server).RedeemFromYieldSource},
	{"Rebalance", (*Server).Rebalance},
	{"SetPause", (*Server).SetPause},
	{"Shutdown", (*Server).Shutdown},
	{"AccruePlatformFee", (*Server).AccruePlatformFee},
	{"TransferFees", (*Server).TransferFees},
	{"ClaimAndUnstake", (*Server).ClaimAndUnstake},
	{"Reinvest", (*Server).Reinvest},
	{"Swap", (*Server).Swap},
	{"MultihopSwap", (*Server).MultihopSwap},
	{"Sweep", (*Server).Sweep},
	{"SetInputAsset", (*Server).SetInputAsset},
	{"SetLiquidityLimit", (*Server).SetLiquidityLimit},
	{"RemoveLiquidityRestriction", (*Server).RemoveLiquidityRestriction},
	{"SetDepositLimit", (*Server).SetDepositLimit},
	{"GetVaultSummary", (*Server).GetVaultSummary},
	{"GetPosition", (*Server).GetPosition},
	{"GetAccount", (*Server).GetAccount},
	{"BalanceOf", (*Server).BalanceOf},
	{"Allowance", (*Server).Allowance},
	{"ListEvents", (*Server).ListEvents},
}

// ServiceDesc describes VaultService for grpc.Server.RegisterService.
// Every method takes and returns a google.protobuf.Struct.
var ServiceDesc = buildServiceDesc()

func buildServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*VaultServiceServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "cellar/v1/vault.proto",
	}
	for _, m := range rpcMethods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(m.name, m.handler),
		})
	}
	return desc
}

func unaryHandler(name string, h rpcHandler) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return h(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return h(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterVaultServiceServer registers srv on the gRPC server
func RegisterVaultServiceServer(registrar grpc.ServiceRegistrar, srv *Server) {
	desc := ServiceDesc
	registrar.RegisterService(&desc, srv)
}

// Invoke calls method on a VaultService connection
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
