package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// FakeSecret signs checkout callbacks in fake mode so local frontends can
// produce valid signatures.
const FakeSecret = "fake_secret"

// FakeGateway is a dev/demo gateway that never calls out.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and should never be
// enabled in production.
type FakeGateway struct {
	logger *logging.Logger
}

func NewFakeGateway(logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{logger: logger}
}

func (g *FakeGateway) KeyID() string { return "rzp_test_fake" }

func (g *FakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: order amount must be positive")
	}
	order := &Order{
		ID:        "order_fake_" + uuid.NewString(),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		Notes:     Notes(req.Notes),
		CreatedAt: time.Now().Unix(),
	}
	g.logger.Warn("fake gateway order created", "order_id", order.ID, "receipt", req.Receipt)
	return order, nil
}

func (g *FakeGateway) Refund(_ context.Context, req RefundRequest) (*Refund, error) {
	if req.PaymentID == "" {
		return nil, fmt.Errorf("payments: refund requires payment id")
	}
	return &Refund{
		ID:        "rfnd_fake_" + uuid.NewString(),
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Status:    "processed",
		Notes:     Notes(req.Notes),
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (g *FakeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return VerifySignature(FakeSecret, orderID+"|"+paymentID, signature)
}
