package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	t.Parallel()

	v := NewTokenVerifier("test-secret")

	tests := []struct {
		name string
		id   Identity
	}{
		{name: "player", id: Identity{AccountID: 42, Role: RolePlayer}},
		{name: "admin", id: Identity{AccountID: 7, Role: RoleAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tok, err := v.Sign(tt.id, time.Minute)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}

			got, err := v.Verify(tok)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if got != tt.id {
				t.Fatalf("identity mismatch: got %+v, want %+v", got, tt.id)
			}
		})
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	t.Parallel()

	v := NewTokenVerifier("test-secret")
	other := NewTokenVerifier("other-secret")

	expired, err := v.Sign(Identity{AccountID: 1, Role: RolePlayer}, -time.Minute)
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}
	wrongKey, err := other.Sign(Identity{AccountID: 1, Role: RolePlayer}, time.Minute)
	if err != nil {
		t.Fatalf("sign wrong key: %v", err)
	}
	badRole, err := v.Sign(Identity{AccountID: 1, Role: Role("root")}, time.Minute)
	if err != nil {
		t.Fatalf("sign bad role: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong_key", token: wrongKey},
		{name: "unknown_role", token: badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := v.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	player := Identity{AccountID: 1, Role: RolePlayer}
	admin := Identity{AccountID: 2, Role: RoleAdmin}
	nobody := Identity{AccountID: 3, Role: Role("unknown")}

	if !player.Can(CapWagerCreate) || !player.Can(CapMatchBan) {
		t.Fatalf("player missing base capabilities")
	}
	if player.Can(CapAdminRefund) || player.Can(CapAdminForce) {
		t.Fatalf("player must not hold admin capabilities")
	}
	if !admin.Can(CapAdminRefund) || !admin.Can(CapAdminForce) || !admin.Can(CapAdminRead) {
		t.Fatalf("admin missing admin capabilities")
	}
	if nobody.Can(CapWagerCreate) {
		t.Fatalf("unknown role should have an empty capability set")
	}
}
