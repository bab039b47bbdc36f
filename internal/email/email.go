package email

import (
	"context"
	"fmt"

	"github.com/feelincoding/openmat/internal/kafka"
)

// Sender is the delivery end of the notification pipeline. Delivery
// failures are its own concern and never reach the booking caller.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	fmt.Printf("notify %s: reservation %s on slot %d is now %s\n", event.RequesterID, event.Reference, event.SlotID, event.Status)
	return nil
}
