//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopiraya-pos/api/internal/config"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/router"
	"github.com/kopiraya-pos/api/internal/ws"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the full API lifecycle against a real PostgreSQL database:
// ledger setup, menu with recipes, order placement with stock consumption, derived
// availability, and the daily revenue rollup.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:          "8082",
		DatabaseURL:   connStr,
		JWTSecret:     "integration-test-secret",
		MaxOrderTotal: 10_000_000,
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown mechanism.
	// Acceptable for tests; production should add context-based shutdown.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Create shop + owner (manual DB insert to bootstrap) ---
	shopID := createShop(t, ctx, pool)
	ownerID := createOwnerUser(t, ctx, pool, shopID)

	// --- 2. Login as owner ---
	token := login(t, server, "owner@test.com", "password123")

	// --- 3. Stock the ledger through the API ---
	beansResp := createIngredient(t, server, shopID, token, map[string]interface{}{
		"name": "Arabica Beans", "quantity": 20, "unit_value": 1000, "unit": "g",
		"min_quantity": 2, "cost_price": "120000",
	})
	beansID := uuid.MustParse(beansResp["id"].(string))

	milkResp := createIngredient(t, server, shopID, token, map[string]interface{}{
		"name": "Fresh Milk", "quantity": 1, "unit_value": 500, "unit": "ml",
		"min_quantity": 0, "cost_price": "18000",
	})
	milkID := uuid.MustParse(milkResp["id"].(string))

	// --- 4. Create menu item with recipe; availability is derived from the ledger ---
	latteResp := createMenuItem(t, server, shopID, token, map[string]interface{}{
		"name": "Latte", "price": "28000", "category": "COFFEE",
		"recipe": []map[string]interface{}{
			{"ingredient_id": beansID.String(), "amount": 18, "unit": "g"},
			{"ingredient_id": milkID.String(), "amount": 180, "unit": "ml"},
		},
	})
	latteID := uuid.MustParse(latteResp["id"].(string))
	if latteResp["available"].(bool) != true {
		t.Fatalf("latte should be available with a full ledger")
	}

	// --- 5. Place an order: 2x Latte with 10%% discount ---
	orderResp := placeOrder(t, server, shopID, token, map[string]interface{}{
		"payment_method":   "QRIS",
		"discount_percent": "10",
		"items": []map[string]interface{}{
			{"menu_item_id": latteID.String(), "quantity": 2, "temperature": "HOT"},
		},
	})
	if got := orderResp["order_number"].(string); got != "KPR-001" {
		t.Fatalf("order_number: got %s, want KPR-001", got)
	}
	// 2 * 28000 = 56000, minus 10% = 50400
	if got := orderResp["total_amount"].(string); got != "50400.00" {
		t.Fatalf("total_amount: got %s, want 50400.00", got)
	}

	// --- 6. Stock was consumed: 2 * 18g beans, 2 * 180ml milk ---
	beans := getIngredient(t, server, shopID, beansID, token)
	if got := beans["used"].(float64); got != 36 {
		t.Fatalf("beans used: got %v, want 36", got)
	}
	milk := getIngredient(t, server, shopID, milkID, token)
	if got := milk["used"].(float64); got != 360 {
		t.Fatalf("milk used: got %v, want 360", got)
	}

	// --- 7. Milk has 140ml left; a second 2x Latte (360ml) must be refused ---
	status, errBody := placeOrderStatus(t, server, shopID, token, map[string]interface{}{
		"payment_method": "CASH",
		"items": []map[string]interface{}{
			{"menu_item_id": latteID.String(), "quantity": 2},
		},
	})
	if status != http.StatusConflict {
		t.Fatalf("overdraw order: got status %d, want 409 (body: %v)", status, errBody)
	}
	if errBody["ingredient"].(string) != "Fresh Milk" {
		t.Fatalf("overdraw ingredient: got %v, want Fresh Milk", errBody["ingredient"])
	}

	// Refused order must not have consumed anything.
	milk = getIngredient(t, server, shopID, milkID, token)
	if got := milk["used"].(float64); got != 360 {
		t.Fatalf("milk used after refused order: got %v, want 360", got)
	}

	// --- 8. Menu availability now reflects the depleted ledger ---
	menu := httpGetJSON(t, server, fmt.Sprintf("/shops/%s/menu/%s", shopID, latteID), token)
	if menu["available"].(bool) != false {
		t.Fatalf("latte should be sold out with 140ml milk left")
	}

	// --- 9. Restock brings it back ---
	restockResp := httpPostJSON(t, server,
		fmt.Sprintf("/shops/%s/ingredients/%s/restock", shopID, milkID),
		map[string]interface{}{"add_quantity": 2}, token)
	if got := restockResp["quantity"].(float64); got != 3 {
		t.Fatalf("milk quantity after restock: got %v, want 3", got)
	}
	menu = httpGetJSON(t, server, fmt.Sprintf("/shops/%s/menu/%s", shopID, latteID), token)
	if menu["available"].(bool) != true {
		t.Fatalf("latte should be available after restock")
	}

	// --- 10. Daily revenue rollup recorded the committed order ---
	today := time.Now().UTC().Format("2006-01-02")
	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	report := httpGetJSON(t, server,
		fmt.Sprintf("/shops/%s/reports/daily-revenue?from=%s&to=%s", shopID, today, tomorrow), token)
	days := report["days"].([]interface{})
	if len(days) != 1 {
		t.Fatalf("report days: got %d, want 1", len(days))
	}
	day := days[0].(map[string]interface{})
	if got := day["order_count"].(float64); got != 1 {
		t.Fatalf("report order_count: got %v, want 1", got)
	}
	if got := day["total_revenue"].(string); got != "50400.00" {
		t.Fatalf("report total_revenue: got %v, want 50400.00", got)
	}

	t.Logf("Integration test passed: container=%s, shop=%s, owner=%s, latte=%s",
		pgContainer.GetContainerID(), shopID, ownerID, latteID)
}

// TestIntegrationConcurrentOverdraw races two orders against stock that can only
// cover one of them. Exactly one must commit; the ledger must never go negative.
func TestIntegrationConcurrentOverdraw(t *testing.T) {
	ctx := context.Background()

	_, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:          "8082",
		DatabaseURL:   connStr,
		JWTSecret:     "integration-test-secret",
		MaxOrderTotal: 10_000_000,
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	go hub.Run()

	server := httptest.NewServer(router.New(cfg, queries, pool, hub))
	defer server.Close()

	shopID := createShop(t, ctx, pool)
	createOwnerUser(t, ctx, pool, shopID)
	token := login(t, server, "owner@test.com", "password123")

	// 100ml of syrup; each soda takes 60ml, so only one order fits.
	syrupResp := createIngredient(t, server, shopID, token, map[string]interface{}{
		"name": "Sugar Syrup", "quantity": 1, "unit_value": 100, "unit": "ml",
		"min_quantity": 0, "cost_price": "25000",
	})
	syrupID := uuid.MustParse(syrupResp["id"].(string))

	sodaResp := createMenuItem(t, server, shopID, token, map[string]interface{}{
		"name": "Italian Soda", "price": "18000", "category": "OTHER",
		"recipe": []map[string]interface{}{
			{"ingredient_id": syrupID.String(), "amount": 60, "unit": "ml"},
		},
	})
	sodaID := uuid.MustParse(sodaResp["id"].(string))

	body := map[string]interface{}{
		"payment_method": "CASH",
		"items": []map[string]interface{}{
			{"menu_item_id": sodaID.String(), "quantity": 1},
		},
	}

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = placeOrderStatus(t, server, shopID, token, body)
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, status := range statuses {
		if status == http.StatusCreated {
			committed++
		} else if status != http.StatusConflict {
			t.Fatalf("unexpected status %d (want 201 or 409)", status)
		}
	}
	if committed != 1 {
		t.Fatalf("committed orders: got %d, want exactly 1 (statuses: %v)", committed, statuses)
	}

	syrup := getIngredient(t, server, shopID, syrupID, token)
	if got := syrup["used"].(float64); got != 60 {
		t.Fatalf("syrup used: got %v, want 60 (exactly one order's worth)", got)
	}
	if got := syrup["available"].(float64); got != 40 {
		t.Fatalf("syrup available: got %v, want 40", got)
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory (internal/handler/).
	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createShop(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO shops (name, address, phone)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		"Test Shop", "123 Test St", "08123456789",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	return id
}

func createOwnerUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, shopID uuid.UUID) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (shop_id, email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		shopID, "owner@test.com", string(hashedPassword), "Test Owner", "OWNER",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create owner user: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	resp := httpPostJSON(t, server, "/auth/login", body, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func createIngredient(t *testing.T, server *httptest.Server, shopID uuid.UUID, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	return httpPostJSON(t, server, fmt.Sprintf("/shops/%s/ingredients", shopID), body, token)
}

func getIngredient(t *testing.T, server *httptest.Server, shopID, id uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	return httpGetJSON(t, server, fmt.Sprintf("/shops/%s/ingredients/%s", shopID, id), token)
}

func createMenuItem(t *testing.T, server *httptest.Server, shopID uuid.UUID, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	return httpPostJSON(t, server, fmt.Sprintf("/shops/%s/menu", shopID), body, token)
}

func placeOrder(t *testing.T, server *httptest.Server, shopID uuid.UUID, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	return httpPostJSON(t, server, fmt.Sprintf("/shops/%s/orders", shopID), body, token)
}

// placeOrderStatus posts an order and returns the status code and decoded body
// without failing on non-2xx, for asserting refusals.
func placeOrderStatus(t *testing.T, server *httptest.Server, shopID uuid.UUID, token string, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+fmt.Sprintf("/shops/%s/orders", shopID), bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
