package service

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/expenseledger/internal/ledger"
)

const (
	LedgerServiceName = "expenseledger.v1.LedgerService"
	AuthServiceName   = "expenseledger.v1.AuthService"
)

// Procedure paths.
const (
	GetAllocationProcedure          = "/" + LedgerServiceName + "/GetAllocation"
	ChangeSplitModeProcedure        = "/" + LedgerServiceName + "/ChangeSplitMode"
	SetSharesProcedure              = "/" + LedgerServiceName + "/SetShares"
	AssignItemsProcedure            = "/" + LedgerServiceName + "/AssignItems"
	SettleProcedure                 = "/" + LedgerServiceName + "/Settle"
	UnsettleProcedure               = "/" + LedgerServiceName + "/Unsettle"
	MarkExpensePaidProcedure        = "/" + LedgerServiceName + "/MarkExpensePaid"
	MarkExpenseUnpaidProcedure      = "/" + LedgerServiceName + "/MarkExpenseUnpaid"
	IsLockedProcedure               = "/" + LedgerServiceName + "/IsLocked"
	GetStatsProcedure               = "/" + LedgerServiceName + "/GetStats"
	GetTimeSeriesProcedure          = "/" + LedgerServiceName + "/GetTimeSeries"
	GetPaymentMethodSeriesProcedure = "/" + LedgerServiceName + "/GetPaymentMethodSeries"
	BulkAssignProcedure             = "/" + LedgerServiceName + "/BulkAssign"
	CreateExpenseProcedure          = "/" + LedgerServiceName + "/CreateExpense"
	GetExpenseProcedure             = "/" + LedgerServiceName + "/GetExpense"
	UpdateExpenseProcedure          = "/" + LedgerServiceName + "/UpdateExpense"
	DeleteExpenseProcedure          = "/" + LedgerServiceName + "/DeleteExpense"
	CreatePartyProcedure            = "/" + LedgerServiceName + "/CreateParty"
	ListPartiesProcedure            = "/" + LedgerServiceName + "/ListParties"
	CreatePaymentMethodProcedure    = "/" + LedgerServiceName + "/CreatePaymentMethod"
	ListPaymentMethodsProcedure     = "/" + LedgerServiceName + "/ListPaymentMethods"

	RegisterProcedure = "/" + AuthServiceName + "/Register"
	LoginProcedure    = "/" + AuthServiceName + "/Login"
)

// connectError maps engine errors to Connect codes. Errors that already
// carry a code pass through.
func connectError(err error) error {
	var ce *connect.Error
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ledger.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrConflict):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ledger.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// unary builds a JSON Connect handler around a plain function.
func unary[Req, Res any](procedure string, fn func(context.Context, *Req) (*Res, error), opts ...connect.HandlerOption) http.Handler {
	opts = append(opts[:len(opts):len(opts)], connect.WithCodec(jsonCodec{}))
	return connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	)
}

// NewLedgerServiceHandler returns the path prefix and handler serving svc.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetAllocationProcedure, unary(GetAllocationProcedure, svc.GetAllocation, opts...))
	mux.Handle(ChangeSplitModeProcedure, unary(ChangeSplitModeProcedure, svc.ChangeSplitMode, opts...))
	mux.Handle(SetSharesProcedure, unary(SetSharesProcedure, svc.SetShares, opts...))
	mux.Handle(AssignItemsProcedure, unary(AssignItemsProcedure, svc.AssignItems, opts...))
	mux.Handle(SettleProcedure, unary(SettleProcedure, svc.Settle, opts...))
	mux.Handle(UnsettleProcedure, unary(UnsettleProcedure, svc.Unsettle, opts...))
	mux.Handle(MarkExpensePaidProcedure, unary(MarkExpensePaidProcedure, svc.MarkExpensePaid, opts...))
	mux.Handle(MarkExpenseUnpaidProcedure, unary(MarkExpenseUnpaidProcedure, svc.MarkExpenseUnpaid, opts...))
	mux.Handle(IsLockedProcedure, unary(IsLockedProcedure, svc.IsLocked, opts...))
	mux.Handle(GetStatsProcedure, unary(GetStatsProcedure, svc.GetStats, opts...))
	mux.Handle(GetTimeSeriesProcedure, unary(GetTimeSeriesProcedure, svc.GetTimeSeries, opts...))
	mux.Handle(GetPaymentMethodSeriesProcedure, unary(GetPaymentMethodSeriesProcedure, svc.GetPaymentMethodSeries, opts...))
	mux.Handle(BulkAssignProcedure, unary(BulkAssignProcedure, svc.BulkAssign, opts...))
	mux.Handle(CreateExpenseProcedure, unary(CreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(GetExpenseProcedure, unary(GetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(UpdateExpenseProcedure, unary(UpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(DeleteExpenseProcedure, unary(DeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(CreatePartyProcedure, unary(CreatePartyProcedure, svc.CreateParty, opts...))
	mux.Handle(ListPartiesProcedure, unary(ListPartiesProcedure, svc.ListParties, opts...))
	mux.Handle(CreatePaymentMethodProcedure, unary(CreatePaymentMethodProcedure, svc.CreatePaymentMethod, opts...))
	mux.Handle(ListPaymentMethodsProcedure, unary(ListPaymentMethodsProcedure, svc.ListPaymentMethods, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// NewAuthServiceHandler returns the path prefix and handler serving svc.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(RegisterProcedure, unary(RegisterProcedure, svc.Register, opts...))
	mux.Handle(LoginProcedure, unary(LoginProcedure, svc.Login, opts...))
	return "/" + AuthServiceName + "/", mux
}

func newClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts []connect.ClientOption) *connect.Client[Req, Res] {
	opts = append(opts[:len(opts):len(opts)], connect.WithCodec(jsonCodec{}))
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}

// LedgerServiceClient calls a LedgerService over Connect.
type LedgerServiceClient struct {
	getAllocation          *connect.Client[ExpenseRequest, GetAllocationResponse]
	changeSplitMode        *connect.Client[ChangeSplitModeRequest, ChangeSplitModeResponse]
	setShares              *connect.Client[SetSharesRequest, AllocationResponse]
	assignItems            *connect.Client[AssignItemsRequest, AllocationResponse]
	settle                 *connect.Client[SettleRequest, SettleResponse]
	unsettle               *connect.Client[UnsettleRequest, Empty]
	markExpensePaid        *connect.Client[MarkExpensePaidRequest, Empty]
	markExpenseUnpaid      *connect.Client[ExpenseRequest, Empty]
	isLocked               *connect.Client[ExpenseRequest, IsLockedResponse]
	getStats               *connect.Client[GetStatsRequest, GetStatsResponse]
	getTimeSeries          *connect.Client[GetTimeSeriesRequest, SeriesResponse]
	getPaymentMethodSeries *connect.Client[GetPaymentMethodSeriesRequest, SeriesResponse]
	bulkAssign             *connect.Client[ledger.BulkRequest, BulkAssignResponse]
	createExpense          *connect.Client[ExpenseMessage, ExpenseMessage]
	getExpense             *connect.Client[ExpenseRequest, ExpenseMessage]
	updateExpense          *connect.Client[ExpenseMessage, ExpenseMessage]
	deleteExpense          *connect.Client[ExpenseRequest, Empty]
	createParty            *connect.Client[NameRequest, PartyResponse]
	listParties            *connect.Client[Empty, ListPartiesResponse]
	createPaymentMethod    *connect.Client[NameRequest, PaymentMethodResponse]
	listPaymentMethods     *connect.Client[Empty, ListPaymentMethodsResponse]
}

// NewLedgerServiceClient creates a client for the server at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	return &LedgerServiceClient{
		getAllocation:          newClient[ExpenseRequest, GetAllocationResponse](httpClient, baseURL, GetAllocationProcedure, opts),
		changeSplitMode:        newClient[ChangeSplitModeRequest, ChangeSplitModeResponse](httpClient, baseURL, ChangeSplitModeProcedure, opts),
		setShares:              newClient[SetSharesRequest, AllocationResponse](httpClient, baseURL, SetSharesProcedure, opts),
		assignItems:            newClient[AssignItemsRequest, AllocationResponse](httpClient, baseURL, AssignItemsProcedure, opts),
		settle:                 newClient[SettleRequest, SettleResponse](httpClient, baseURL, SettleProcedure, opts),
		unsettle:               newClient[UnsettleRequest, Empty](httpClient, baseURL, UnsettleProcedure, opts),
		markExpensePaid:        newClient[MarkExpensePaidRequest, Empty](httpClient, baseURL, MarkExpensePaidProcedure, opts),
		markExpenseUnpaid:      newClient[ExpenseRequest, Empty](httpClient, baseURL, MarkExpenseUnpaidProcedure, opts),
		isLocked:               newClient[ExpenseRequest, IsLockedResponse](httpClient, baseURL, IsLockedProcedure, opts),
		getStats:               newClient[GetStatsRequest, GetStatsResponse](httpClient, baseURL, GetStatsProcedure, opts),
		getTimeSeries:          newClient[GetTimeSeriesRequest, SeriesResponse](httpClient, baseURL, GetTimeSeriesProcedure, opts),
		getPaymentMethodSeries: newClient[GetPaymentMethodSeriesRequest, SeriesResponse](httpClient, baseURL, GetPaymentMethodSeriesProcedure, opts),
		bulkAssign:             newClient[ledger.BulkRequest, BulkAssignResponse](httpClient, baseURL, BulkAssignProcedure, opts),
		createExpense:          newClient[ExpenseMessage, ExpenseMessage](httpClient, baseURL, CreateExpenseProcedure, opts),
		getExpense:             newClient[ExpenseRequest, ExpenseMessage](httpClient, baseURL, GetExpenseProcedure, opts),
		updateExpense:          newClient[ExpenseMessage, ExpenseMessage](httpClient, baseURL, UpdateExpenseProcedure, opts),
		deleteExpense:          newClient[ExpenseRequest, Empty](httpClient, baseURL, DeleteExpenseProcedure, opts),
		createParty:            newClient[NameRequest, PartyResponse](httpClient, baseURL, CreatePartyProcedure, opts),
		listParties:            newClient[Empty, ListPartiesResponse](httpClient, baseURL, ListPartiesProcedure, opts),
		createPaymentMethod:    newClient[NameRequest, PaymentMethodResponse](httpClient, baseURL, CreatePaymentMethodProcedure, opts),
		listPaymentMethods:     newClient[Empty, ListPaymentMethodsResponse](httpClient, baseURL, ListPaymentMethodsProcedure, opts),
	}
}

func (c *LedgerServiceClient) GetAllocation(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[GetAllocationResponse], error) {
	return c.getAllocation.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ChangeSplitMode(ctx context.Context, req *connect.Request[ChangeSplitModeRequest]) (*connect.Response[ChangeSplitModeResponse], error) {
	return c.changeSplitMode.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SetShares(ctx context.Context, req *connect.Request[SetSharesRequest]) (*connect.Response[AllocationResponse], error) {
	return c.setShares.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) AssignItems(ctx context.Context, req *connect.Request[AssignItemsRequest]) (*connect.Response[AllocationResponse], error) {
	return c.assignItems.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) Settle(ctx context.Context, req *connect.Request[SettleRequest]) (*connect.Response[SettleResponse], error) {
	return c.settle.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) Unsettle(ctx context.Context, req *connect.Request[UnsettleRequest]) (*connect.Response[Empty], error) {
	return c.unsettle.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) MarkExpensePaid(ctx context.Context, req *connect.Request[MarkExpensePaidRequest]) (*connect.Response[Empty], error) {
	return c.markExpensePaid.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) MarkExpenseUnpaid(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[Empty], error) {
	return c.markExpenseUnpaid.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) IsLocked(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[IsLockedResponse], error) {
	return c.isLocked.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetStats(ctx context.Context, req *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	return c.getStats.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetTimeSeries(ctx context.Context, req *connect.Request[GetTimeSeriesRequest]) (*connect.Response[SeriesResponse], error) {
	return c.getTimeSeries.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetPaymentMethodSeries(ctx context.Context, req *connect.Request[GetPaymentMethodSeriesRequest]) (*connect.Response[SeriesResponse], error) {
	return c.getPaymentMethodSeries.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) BulkAssign(ctx context.Context, req *connect.Request[ledger.BulkRequest]) (*connect.Response[BulkAssignResponse], error) {
	return c.bulkAssign.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[ExpenseMessage]) (*connect.Response[ExpenseMessage], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseMessage], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[ExpenseMessage]) (*connect.Response[ExpenseMessage], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[Empty], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateParty(ctx context.Context, req *connect.Request[NameRequest]) (*connect.Response[PartyResponse], error) {
	return c.createParty.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListParties(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListPartiesResponse], error) {
	return c.listParties.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreatePaymentMethod(ctx context.Context, req *connect.Request[NameRequest]) (*connect.Response[PaymentMethodResponse], error) {
	return c.createPaymentMethod.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListPaymentMethods(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListPaymentMethodsResponse], error) {
	return c.listPaymentMethods.CallUnary(ctx, req)
}

// AuthServiceClient calls an AuthService over Connect.
type AuthServiceClient struct {
	register *connect.Client[RegisterRequest, AuthResponse]
	login    *connect.Client[LoginRequest, AuthResponse]
}

// NewAuthServiceClient creates a client for the server at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	return &AuthServiceClient{
		register: newClient[RegisterRequest, AuthResponse](httpClient, baseURL, RegisterProcedure, opts),
		login:    newClient[LoginRequest, AuthResponse](httpClient, baseURL, LoginProcedure, opts),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	return c.login.CallUnary(ctx, req)
}
