// Package mail renders and sends the two outbound emails: customer receipts
// and admin password resets.
package mail

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind tags the email being dispatched.
type Kind string

const (
	KindReceipt       Kind = "receipt"
	KindPasswordReset Kind = "password-reset"
)

// Message is a rendered email ready to be handed to a Sender.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ReceiptLine is one purchased item on a receipt.
type ReceiptLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity times unit price.
func (l ReceiptLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ReceiptDiscount is an applied discount line.
type ReceiptDiscount struct {
	Name      string
	AmountOff decimal.Decimal
}

// Receipt is the payload of a KindReceipt email.
type Receipt struct {
	Email     string
	OrderID   string
	CreatedAt time.Time
	Items     []ReceiptLine
	Discounts []ReceiptDiscount
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// PasswordReset is the payload of a KindPasswordReset email.
type PasswordReset struct {
	TempPassword string
	ExpiresIn    time.Duration
}

// ErrUnknownPayload is returned when the payload does not match the kind.
var ErrUnknownPayload = errors.New("unknown mail payload")

// Dispatcher turns a kind and payload into a Message and sends it.
type Dispatcher struct {
	sender      Sender
	clubAddress string
}

// NewDispatcher creates a Dispatcher. Password reset emails go to
// clubAddress.
func NewDispatcher(sender Sender, clubAddress string) *Dispatcher {
	return &Dispatcher{sender: sender, clubAddress: clubAddress}
}

// Dispatch renders payload for kind and sends it.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, payload any) error {
	var (
		msg Message
		err error
	)
	switch p := payload.(type) {
	case Receipt:
		if kind != KindReceipt {
			return errors.Wrapf(ErrUnknownPayload, "%s with receipt payload", kind)
		}
		if p.Email == "" {
			return errors.New("receipt without recipient")
		}
		msg, err = renderReceipt(p)
	case PasswordReset:
		if kind != KindPasswordReset {
			return errors.Wrapf(ErrUnknownPayload, "%s with password reset payload", kind)
		}
		if d.clubAddress == "" {
			return errors.New("club address not configured")
		}
		msg, err = renderPasswordReset(p, d.clubAddress)
	default:
		return errors.Wrapf(ErrUnknownPayload, "%s: %T", kind, payload)
	}
	if err != nil {
		return errors.Wrapf(err, "render %s", kind)
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "send %s", kind)
	}
	return nil
}
