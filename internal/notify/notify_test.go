package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"swiftpay-bot/internal/domain"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []sendRequest
	failFor   map[string]error
}

func (f *fakeDeliverer) SendToAddress(ctx context.Context, address, eventTypeKey, message string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[address]; ok {
		return nil, err
	}

	f.delivered = append(f.delivered, sendRequest{Address: address, EventType: eventTypeKey, Message: message})
	return []string{"push"}, nil
}

func reservationEvent() *domain.ParsedEvent {
	return &domain.ParsedEvent{
		Kind: domain.EventReservationCreated,
		Data: domain.EventData{
			FiatAmount:      "15500",
			Currency:        "NGN",
			PayoutReference: "swp_ref_001",
		},
		Participants: map[domain.Role]string{
			domain.RoleMaker: "MakerAddr",
			domain.RoleTaker: "TakerAddr",
		},
	}
}

func TestNotifyParticipants_AllRoles(t *testing.T) {
	fake := &fakeDeliverer{}
	d := NewDispatcher(fake, nil)

	d.NotifyParticipants(context.Background(), reservationEvent())

	if len(fake.delivered) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(fake.delivered))
	}

	byAddr := map[string]sendRequest{}
	for _, r := range fake.delivered {
		byAddr[r.Address] = r
	}

	maker, ok := byAddr["MakerAddr"]
	if !ok {
		t.Fatal("maker not notified")
	}
	if maker.EventType != "reservation_created" {
		t.Errorf("unexpected event type %s", maker.EventType)
	}
	if !strings.Contains(maker.Message, "swp_ref_001") {
		t.Errorf("maker message missing reference: %q", maker.Message)
	}

	taker, ok := byAddr["TakerAddr"]
	if !ok {
		t.Fatal("taker not notified")
	}
	if taker.Message == maker.Message {
		t.Error("expected role-specific messages")
	}
}

func TestNotifyParticipants_EmptyParticipants(t *testing.T) {
	fake := &fakeDeliverer{}
	d := NewDispatcher(fake, nil)

	ev := reservationEvent()
	ev.Participants = nil

	d.NotifyParticipants(context.Background(), ev)

	if len(fake.delivered) != 0 {
		t.Errorf("expected no deliveries, got %d", len(fake.delivered))
	}
}

func TestNotifyParticipants_UnknownKindRejected(t *testing.T) {
	fake := &fakeDeliverer{}
	d := NewDispatcher(fake, nil)

	ev := reservationEvent()
	ev.Kind = domain.EventKind("escrow_topped_up")

	d.NotifyParticipants(context.Background(), ev)

	if len(fake.delivered) != 0 {
		t.Errorf("expected no deliveries for unknown kind, got %d", len(fake.delivered))
	}
}

func TestNotifyParticipants_FailureIsolation(t *testing.T) {
	fake := &fakeDeliverer{
		failFor: map[string]error{"MakerAddr": errors.New("push service down")},
	}
	d := NewDispatcher(fake, nil)

	d.NotifyParticipants(context.Background(), reservationEvent())

	if len(fake.delivered) != 1 {
		t.Fatalf("expected 1 delivery despite failure, got %d", len(fake.delivered))
	}
	if fake.delivered[0].Address != "TakerAddr" {
		t.Errorf("expected taker delivery, got %s", fake.delivered[0].Address)
	}
}

func TestRenderMessage_OutcomeKinds(t *testing.T) {
	ev := reservationEvent()

	ev.Kind = domain.EventPayoutCompleted
	if msg := renderMessage(ev, domain.RoleMaker); !strings.Contains(msg, "released") {
		t.Errorf("maker completion message: %q", msg)
	}

	ev.Kind = domain.EventPayoutFailed
	if msg := renderMessage(ev, domain.RoleTaker); !strings.Contains(msg, "failed") {
		t.Errorf("taker failure message: %q", msg)
	}
}
