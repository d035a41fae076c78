package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("Entregue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OrderStatusDelivered || !status.IsTerminal() {
		t.Fatalf("expected terminal delivered status, got %q", status)
	}
	if _, err := ParseOrderStatus("delivered"); err == nil {
		t.Fatal("expected english alias to be rejected")
	}
}

func TestOrderStatusStockAndSpend(t *testing.T) {
	if OrderStatusProcessing.ConsumesStock() {
		t.Fatal("processing orders must not consume stock")
	}
	for _, s := range []OrderStatus{OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered} {
		if !s.ConsumesStock() {
			t.Fatalf("%s should consume stock", s)
		}
	}
	if OrderStatusCanceled.CountsTowardSpend() {
		t.Fatal("canceled orders must not count toward spend")
	}
	if !OrderStatusProcessing.CountsTowardSpend() {
		t.Fatal("processing orders count toward spend")
	}
}

func TestParseHandoffChannelAndMethod(t *testing.T) {
	if _, err := ParseHandoffChannel("telegram"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseHandoffChannel("sms"); err == nil {
		t.Fatal("expected sms to be rejected")
	}
	if _, err := ParsePaymentMethod("pix"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseLoyaltyTier(t *testing.T) {
	if tier, err := ParseLoyaltyTier("Prata"); err != nil || tier != TierSilver {
		t.Fatalf("expected silver, got %q err=%v", tier, err)
	}
}

func TestOutboxEventTypesPinAggregate(t *testing.T) {
	if EventOrderCreated.Aggregate() != AggregateOrder || EventStockSynced.Aggregate() != AggregateProduct {
		t.Fatalf("unexpected aggregate mapping")
	}
	if OutboxEventType("coupon_created").Aggregate() != "" {
		t.Fatalf("unknown event types have no aggregate")
	}
	if _, err := ParseOutboxEventType("order_status_changed"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ParseOutboxEventType("order_shipped"); err == nil {
		t.Fatalf("expected unknown event type to fail")
	}
}
