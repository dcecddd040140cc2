package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/simaogato/cellar-backend/internal/usecase/dashboard"
	"github.com/simaogato/cellar-backend/internal/usecase/position"
	"github.com/simaogato/cellar-backend/internal/usecase/vault"
)

// Server implements the VaultService gRPC server
type Server struct {
	VaultService     *vault.VaultService
	DashboardService *dashboard.DashboardService
	PositionService  *position.PositionService
	Events           domain.EventRecorder
}

// NewServer creates a new gRPC server instance
func NewServer(
	vaultService *vault.VaultService,
	dashboardService *dashboard.DashboardService,
	positionService *position.PositionService,
	events domain.EventRecorder,
) *Server {
	return &Server{
		VaultService:     vaultService,
		DashboardService: dashboardService,
		PositionService:  positionService,
		Events:           events,
	}
}

// callerFrom returns the authenticated caller or Unauthenticated
func callerFrom(ctx context.Context) (domain.Address, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing x-account header")
	}
	return caller, nil
}

// Deposit handles the Deposit RPC
func (s *Server) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}
	minOutput, err := optionalAmountField(req, "min_output")
	if err != nil {
		return nil, err
	}

	res, err := s.VaultService.Deposit(ctx, vault.DepositInput{
		Caller:    caller,
		Receiver:  domain.Address(stringField(req, "receiver")),
		Asset:     domain.Asset(stringField(req, "asset")),
		Amount:    amount,
		MinOutput: minOutput,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return respond(map[string]interface{}{
		"assets": amountString(res.Assets),
		"shares": amountString(res.Shares),
	})
}

// Withdraw handles the Withdraw RPC; amount is in assets
func (s *Server) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := withdrawInput(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := s.VaultService.Withdraw(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	return withdrawResponse(res)
}

// Redeem handles the Redeem RPC; amount is in shares
func (s *Server) Redeem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := withdrawInput(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := s.VaultService.Redeem(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	return withdrawResponse(res)
}

func withdrawInput(ctx context.Context, req *structpb.Struct) (vault.WithdrawInput, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return vault.WithdrawInput{}, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return vault.WithdrawInput{}, err
	}
	return vault.WithdrawInput{
		Caller:   caller,
		Receiver: domain.Address(stringField(req, "receiver")),
		Owner:    domain.Address(stringField(req, "owner")),
		Amount:   amount,
	}, nil
}

func withdrawResponse(res *vault.WithdrawResult) (*structpb.Struct, error) {
	return respond(map[string]interface{}{
		"assets":     amountString(res.Assets),
		"shares":     amountString(res.Shares),
		"fee_shares": amountString(res.FeeShares),
		"gain":       amountString(res.Gain),
	})
}

// Transfer handles the Transfer RPC
func (s *Server) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := amountField(req, "shares")
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.Transfer(ctx, caller, domain.Address(stringField(req, "to")), shares); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"shares": amountString(shares)})
}

// TransferFrom handles the TransferFrom RPC
func (s *Server) TransferFrom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := amountField(req, "shares")
	if err != nil {
		return nil, err
	}
	from := domain.Address(stringField(req, "from"))
	to := domain.Address(stringField(req, "to"))
	if err := s.VaultService.TransferFrom(ctx, caller, from, to, shares); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"shares": amountString(shares)})
}

// Approve handles the Approve RPC
func (s *Server) Approve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := amountField(req, "shares")
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.Approve(ctx, caller, domain.Address(stringField(req, "spender")), shares); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"shares": amountString(shares)})
}

// EnterStrategy handles the EnterStrategy RPC
func (s *Server) EnterStrategy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	deployed, err := s.VaultService.EnterStrategy(ctx, caller)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"deployed": amountString(deployed)})
}

// RedeemFromYieldSource handles the RedeemFromYieldSource RPC
func (s *Server) RedeemFromYieldSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}
	returned, err := s.VaultService.RedeemFromYieldSource(ctx, caller, domain.Asset(stringField(req, "asset")), amount)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"returned": amountString(returned)})
}

// Rebalance handles the Rebalance RPC
func (s *Server) Rebalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	minOutput, err := optionalAmountField(req, "min_output")
	if err != nil {
		return nil, err
	}
	out, err := s.VaultService.Rebalance(ctx, caller, domain.Asset(stringField(req, "asset")), minOutput)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"amount_out": amountString(out)})
}

// SetPause handles the SetPause RPC
func (s *Server) SetPause(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	paused := boolField(req, "paused")
	if err := s.VaultService.SetPause(ctx, caller, paused); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"paused": paused})
}

// Shutdown handles the Shutdown RPC
func (s *Server) Shutdown(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.Shutdown(ctx, caller); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"shutdown": true})
}

// AccruePlatformFee handles the AccruePlatformFee RPC
func (s *Server) AccruePlatformFee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	minted, err := s.VaultService.AccruePlatformFee(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"fee_shares": amountString(minted)})
}

// TransferFees handles the TransferFees RPC
func (s *Server) TransferFees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.VaultService.TransferFees(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{
		"shares": amountString(res.Shares),
		"assets": amountString(res.Assets),
	})
}

// ClaimAndUnstake handles the ClaimAndUnstake RPC
func (s *Server) ClaimAndUnstake(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	claimed, err := s.VaultService.ClaimAndUnstake(ctx, caller)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"claimed": amountString(claimed)})
}

// Reinvest handles the Reinvest RPC
func (s *Server) Reinvest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	minOutput, err := optionalAmountField(req, "min_output")
	if err != nil {
		return nil, err
	}
	out, err := s.VaultService.Reinvest(ctx, caller, minOutput)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"amount_out": amountString(out)})
}

// Swap handles the Swap RPC
func (s *Server) Swap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}
	minOutput, err := optionalAmountField(req, "min_output")
	if err != nil {
		return nil, err
	}
	out, err := s.VaultService.Swap(ctx, caller,
		domain.Asset(stringField(req, "asset_in")), domain.Asset(stringField(req, "asset_out")), amount, minOutput)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"amount_out": amountString(out)})
}

// MultihopSwap handles the MultihopSwap RPC
func (s *Server) MultihopSwap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}
	minOutput, err := optionalAmountField(req, "min_output")
	if err != nil {
		return nil, err
	}
	out, err := s.VaultService.MultihopSwap(ctx, caller, assetListField(req, "path"), amount, minOutput)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"amount_out": amountString(out)})
}

// Sweep handles the Sweep RPC
func (s *Server) Sweep(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	swept, err := s.VaultService.Sweep(ctx, caller, domain.Asset(stringField(req, "asset")), domain.Address(stringField(req, "to")))
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"amount": amountString(swept)})
}

// SetInputAsset handles the SetInputAsset RPC
func (s *Server) SetInputAsset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	eligible := boolField(req, "eligible")
	if err := s.VaultService.SetInputAsset(ctx, caller, domain.Asset(stringField(req, "asset")), eligible); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{"eligible": eligible})
}

// SetLiquidityLimit handles the SetLiquidityLimit RPC; an empty limit removes the cap
func (s *Server) SetLiquidityLimit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := optionalAmountField(req, "limit")
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.SetLiquidityLimit(ctx, caller, limit); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{})
}

// RemoveLiquidityRestriction handles the RemoveLiquidityRestriction RPC
func (s *Server) RemoveLiquidityRestriction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.RemoveLiquidityRestriction(ctx, caller); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{})
}

// SetDepositLimit handles the SetDepositLimit RPC; an empty limit removes the cap
func (s *Server) SetDepositLimit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := optionalAmountField(req, "limit")
	if err != nil {
		return nil, err
	}
	if err := s.VaultService.SetDepositLimit(ctx, caller, limit); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]interface{}{})
}

// GetVaultSummary handles the GetVaultSummary RPC
func (s *Server) GetVaultSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	summary, err := s.DashboardService.GetVaultSummary(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	return respond(map[string]interface{}{
		"asset":           string(summary.Asset),
		"status":          string(summary.Status),
		"total_assets":    summary.TotalAssets.String(),
		"active_assets":   summary.ActiveAssets.String(),
		"inactive_assets": summary.InactiveAssets.String(),
		"total_shares":    summary.TotalShares.String(),
		"fee_shares":      summary.FeeShares.String(),
		"share_price":     summary.SharePrice.String(),
	})
}

// GetPosition handles the GetPosition RPC; owner defaults to the caller
func (s *Server) GetPosition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := domain.Address(stringField(req, "owner"))
	if owner == "" {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, err
		}
		owner = caller
	}

	pos, err := s.PositionService.GetPosition(ctx, owner)
	if err != nil {
		return nil, mapError(err)
	}

	return respond(map[string]interface{}{
		"owner":      string(pos.Owner),
		"shares":     pos.Shares.String(),
		"value":      pos.Value.String(),
		"cost_basis": pos.CostBasis.String(),
		"profit":     pos.Profit.String(),
		"open_lots":  pos.OpenLots,
		"cursor":     pos.Cursor,
	})
}

// GetAccount handles the GetAccount RPC, listing the owner's lots in base units
func (s *Server) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := domain.Address(stringField(req, "owner"))
	if owner == "" {
		return nil, status.Error(codes.InvalidArgument, "owner is required")
	}

	account, err := s.VaultService.Account(ctx, owner)
	if err != nil {
		return nil, mapError(err)
	}

	lots := make([]interface{}, 0, len(account.Lots))
	for _, lot := range account.Lots {
		lots = append(lots, map[string]interface{}{
			"assets":    amountString(lot.Assets),
			"shares":    amountString(lot.Shares),
			"timestamp": lot.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	return respond(map[string]interface{}{
		"owner":      string(account.Owner),
		"shares":     amountString(account.Shares),
		"cost_basis": amountString(account.CostBasis),
		"value":      amountString(account.Value),
		"cursor":     account.Cursor,
		"lots":       lots,
	})
}

// BalanceOf handles the BalanceOf RPC
func (s *Server) BalanceOf(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := domain.Address(stringField(req, "owner"))
	return respond(map[string]interface{}{
		"shares": amountString(s.VaultService.BalanceOf(ctx, owner)),
	})
}

// Allowance handles the Allowance RPC
func (s *Server) Allowance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner := domain.Address(stringField(req, "owner"))
	spender := domain.Address(stringField(req, "spender"))
	return respond(map[string]interface{}{
		"shares": amountString(s.VaultService.Allowance(ctx, owner, spender)),
	})
}

// ListEvents handles the ListEvents RPC
func (s *Server) ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := intField(req, "limit")
	offset := intField(req, "offset")

	// Validate limit (must be positive)
	if limit <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be positive")
	}

	// Validate offset (must be non-negative)
	if offset < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "offset must be non-negative")
	}

	events, err := s.Events.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]interface{}, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]interface{}{
			"id":         e.ID.String(),
			"kind":       string(e.Kind),
			"timestamp":  e.Timestamp.UTC().Format(time.RFC3339),
			"caller":     string(e.Caller),
			"receiver":   string(e.Receiver),
			"owner":      string(e.Owner),
			"asset_in":   string(e.AssetIn),
			"asset_out":  string(e.AssetOut),
			"amount_in":  amountString(e.AmountIn),
			"amount_out": amountString(e.AmountOut),
			"shares":     amountString(e.Shares),
			"flag":       e.Flag,
		})
	}

	return respond(map[string]interface{}{"events": out})
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)

	case errors.Is(err, domain.ErrUnauthorized):
		return status.Errorf(codes.PermissionDenied, "%s", errorMsg)

	// Malformed requests
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidReceiver),
		errors.Is(err, domain.ErrUnsupportedAsset),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrSameLendingToken),
		errors.Is(err, domain.ErrZeroShares):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)

	// Requests that are well formed but not allowed in the current state
	case errors.Is(err, domain.ErrContractPaused),
		errors.Is(err, domain.ErrContractShutdown),
		errors.Is(err, domain.ErrLiquidityRestricted),
		errors.Is(err, domain.ErrDepositRestricted),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrSlippageExceeded),
		errors.Is(err, domain.ErrProtectedToken),
		errors.Is(err, domain.ErrCooldownActive),
		errors.Is(err, domain.ErrNothingToClaim):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)

	case errors.Is(err, domain.ErrReentrantCall):
		return status.Errorf(codes.Aborted, "%s", errorMsg)

	case errors.Is(err, domain.ErrAmountOverflow):
		return status.Errorf(codes.OutOfRange, "%s", errorMsg)

	case errors.Is(err, domain.ErrSnapshotNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
