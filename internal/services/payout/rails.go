package payout

import (
	"context"
	"fmt"

	domainerr "payrail/internal/errors"
	"payrail/internal/gateway"
	"payrail/internal/models"
)

// Rail executes a transfer over one settlement rail. New rails plug in
// by implementing this interface and registering; the scheduler never
// switches on method types.
type Rail interface {
	Type() string
	Transfer(ctx context.Context, p *models.Payout, method *models.PayoutMethod) (railRef string, err error)
}

// Registry maps payout method types to rails.
type Registry struct {
	rails map[string]Rail
}

func NewRegistry(rails ...Rail) *Registry {
	r := &Registry{rails: make(map[string]Rail, len(rails))}
	for _, rail := range rails {
		r.rails[rail.Type()] = rail
	}
	return r
}

func (r *Registry) Register(rail Rail) {
	r.rails[rail.Type()] = rail
}

func (r *Registry) For(methodType string) (Rail, error) {
	rail, ok := r.rails[methodType]
	if !ok {
		return nil, fmt.Errorf("no rail registered for method type %q", methodType)
	}
	return rail, nil
}

// bankRail settles to bank accounts through the gateway transfer API.
type bankRail struct {
	gw gateway.Client
}

func NewBankRail(gw gateway.Client) Rail {
	return &bankRail{gw: gw}
}

func (r *bankRail) Type() string { return models.PayoutMethodBank }

func (r *bankRail) Transfer(ctx context.Context, p *models.Payout, method *models.PayoutMethod) (string, error) {
	result, err := r.gw.Transfer(ctx, gateway.TransferInput{
		Rail:     "bank",
		Amount:   p.NetAmount,
		Currency: p.Currency,
		Reason:   "payout " + p.Reference,
		// The payout reference doubles as the rail idempotency key, so
		// a re-dispatched PROCESSING payout cannot pay twice.
		IdempotencyKey: p.Reference,
		BankCode:       method.BankCode,
		AccountNumber:  method.AccountNumber,
		AccountName:    method.AccountName,
	})
	if err != nil {
		return "", err
	}
	if result.Status != "success" && result.Status != "pending" {
		return result.Reference, domainerr.ErrTransportFailure.WithDetail(
			"bank transfer %s returned status %s", p.Reference, result.Status)
	}
	return result.Reference, nil
}

// mobileMoneyRail settles to mobile money wallets.
type mobileMoneyRail struct {
	gw gateway.Client
}

func NewMobileMoneyRail(gw gateway.Client) Rail {
	return &mobileMoneyRail{gw: gw}
}

func (r *mobileMoneyRail) Type() string { return models.PayoutMethodMobileMoney }

func (r *mobileMoneyRail) Transfer(ctx context.Context, p *models.Payout, method *models.PayoutMethod) (string, error) {
	result, err := r.gw.Transfer(ctx, gateway.TransferInput{
		Rail:           "mobile_money",
		Amount:         p.NetAmount,
		Currency:       p.Currency,
		Reason:         "payout " + p.Reference,
		IdempotencyKey: p.Reference,
		Provider:       method.Provider,
		PhoneNumber:    method.PhoneNumber,
		AccountName:    method.AccountName,
	})
	if err != nil {
		return "", err
	}
	if result.Status != "success" && result.Status != "pending" {
		return result.Reference, domainerr.ErrTransportFailure.WithDetail(
			"mobile money transfer %s returned status %s", p.Reference, result.Status)
	}
	return result.Reference, nil
}
