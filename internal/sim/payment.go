package sim

import "errors"

type PaymentState string

const (
	PaymentIdle       PaymentState = "idle"
	PaymentProcessing PaymentState = "processing"
	PaymentSucceeded  PaymentState = "succeeded"
	PaymentCompleted  PaymentState = "completed"
)

var ErrPaymentStarted = errors.New("payment already started")

type LineItem struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// DefaultBreakdown is what a standard rescue costs, in rupees.
var DefaultBreakdown = []LineItem{
	{Label: "Emergency Rescue Service", Amount: 350},
	{Label: "Charging (per kWh)", Amount: 100},
	{Label: "Service Fee", Amount: 50},
}

// Payment walks idle → processing → succeeded → completed. Every payment
// succeeds.
type Payment struct {
	lines []LineItem
	state PaymentState
}

func NewPayment(lines []LineItem) *Payment {
	if len(lines) == 0 {
		lines = DefaultBreakdown
	}
	cp := make([]LineItem, len(lines))
	copy(cp, lines)
	return &Payment{lines: cp, state: PaymentIdle}
}

func (p *Payment) Amount() int {
	total := 0
	for _, l := range p.lines {
		total += l.Amount
	}
	return total
}

func (p *Payment) Lines() []LineItem   { return p.lines }
func (p *Payment) State() PaymentState { return p.state }

// Pay starts processing. Only the first call is accepted.
func (p *Payment) Pay() error {
	if p.state != PaymentIdle {
		return ErrPaymentStarted
	}
	p.state = PaymentProcessing
	return nil
}

// Advance moves to the next phase. It returns true exactly once, when the
// payment becomes completed.
func (p *Payment) Advance() bool {
	switch p.state {
	case PaymentProcessing:
		p.state = PaymentSucceeded
	case PaymentSucceeded:
		p.state = PaymentCompleted
		return true
	}
	return false
}
