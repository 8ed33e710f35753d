package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/kopiraya-pos/api/internal/auth"
)

const testSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	h := Authenticate(testSecret)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthenticate_BadFormat(t *testing.T) {
	h := Authenticate(testSecret)(okHandler())
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	h := Authenticate(testSecret)(okHandler())
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "CASHIER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotClaims *auth.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	h := Authenticate(testSecret)(inner)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if gotClaims == nil || gotClaims.Role != "CASHIER" {
		t.Errorf("claims not propagated to context: %+v", gotClaims)
	}
}

func TestRequireShop_OwnerBypasses(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "OWNER")
	h := Authenticate(testSecret)(RequireShop(okHandler()))
	req := httptest.NewRequest("GET", "/shops/"+uuid.NewString()+"/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("owner should access any shop: got %d, want 200", rec.Code)
	}
}

func TestRequireShop_WrongShopDenied(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "CASHIER")

	mux := http.NewServeMux()
	mux.Handle("GET /shops/{sid}/orders", Authenticate(testSecret)(RequireShop(okHandler())))

	req := httptest.NewRequest("GET", "/shops/"+uuid.NewString()+"/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("cashier on foreign shop: got %d, want 403", rec.Code)
	}
}

func TestRequireShop_OwnShopAllowed(t *testing.T) {
	shopID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), shopID, "CASHIER")

	mux := http.NewServeMux()
	mux.Handle("GET /shops/{sid}/orders", Authenticate(testSecret)(RequireShop(okHandler())))

	req := httptest.NewRequest("GET", "/shops/"+shopID.String()+"/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("cashier on own shop: got %d, want 200", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	ownerToken, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "OWNER")
	cashierToken, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "CASHIER")

	h := Authenticate(testSecret)(RequireRole("OWNER", "MANAGER")(okHandler()))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("owner: got %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+cashierToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cashier: got %d, want 403", rec.Code)
	}
}
