package auth

import (
	"testing"

	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()
	shopID := uuid.New()

	token, err := GenerateToken(testSecret, userID, shopID, "CASHIER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id: got %v, want %v", claims.UserID, userID)
	}
	if claims.ShopID != shopID {
		t.Errorf("shop id: got %v, want %v", claims.ShopID, shopID)
	}
	if claims.Role != "CASHIER" {
		t.Errorf("role: got %v, want CASHIER", claims.Role)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, uuid.New(), uuid.New(), "OWNER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken(testSecret, "not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
