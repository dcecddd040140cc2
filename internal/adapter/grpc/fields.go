package grpc

import (
	"github.com/holiman/uint256"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// Requests and responses are structpb.Struct messages. Amounts travel as
// base-10 strings of base units since they exceed float64 precision.

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	v, ok := req.GetFields()[name]
	if !ok {
		return false
	}
	return v.GetBoolValue()
}

func intField(req *structpb.Struct, name string) int {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0
	}
	return int(v.GetNumberValue())
}

// amountField parses a required amount
func amountField(req *structpb.Struct, name string) (*uint256.Int, error) {
	raw := stringField(req, name)
	if raw == "" {
		return nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	v, err := domain.ParseAmount(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return v, nil
}

// optionalAmountField parses an amount that may be omitted, returning nil when absent
func optionalAmountField(req *structpb.Struct, name string) (*uint256.Int, error) {
	if stringField(req, name) == "" {
		return nil, nil
	}
	return amountField(req, name)
}

func assetListField(req *structpb.Struct, name string) []domain.Asset {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil
	}
	var out []domain.Asset
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, domain.Asset(item.GetStringValue()))
	}
	return out
}

func amountString(x *uint256.Int) string {
	return domain.Copy(x).Dec()
}

func respond(fields map[string]interface{}) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}
