package domain

import (
	"context"
	"testing"
)

func TestBuyerContext(t *testing.T) {
	t.Run("guest has no buyer", func(t *testing.T) {
		ctx := context.Background()
		if BuyerFromContext(ctx) != nil {
			t.Error("expected nil buyer")
		}
		if BuyerUserIDFromContext(ctx) != "" {
			t.Error("expected empty user id")
		}
		if IsAuthenticated(ctx) {
			t.Error("guest should not be authenticated")
		}
	})

	t.Run("buyer round trips", func(t *testing.T) {
		ctx := NewContextWithBuyer(context.Background(), &Buyer{UserID: "user_42", Email: "a@example.com"})
		buyer := BuyerFromContext(ctx)
		if buyer == nil {
			t.Fatal("expected buyer, got nil")
		}
		if buyer.Email != "a@example.com" {
			t.Errorf("Email = %q", buyer.Email)
		}
		if BuyerUserIDFromContext(ctx) != "user_42" {
			t.Errorf("UserID = %q", BuyerUserIDFromContext(ctx))
		}
	})
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
	ctx := NewContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q, want req-1", got)
	}
}
