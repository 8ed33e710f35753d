package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopiraya-pos/api/internal/config"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/handler"
	mw "github.com/kopiraya-pos/api/internal/middleware"
	"github.com/kopiraya-pos/api/internal/service"
	"github.com/kopiraya-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, shop scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://admin.kopiraya.id",
			"https://stg-admin.kopiraya.id",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/inventory", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Shop-scoped routes
		r.Route("/shops/{sid}", func(r chi.Router) {
			r.Use(mw.RequireShop)

			// Inventory ledger
			inventoryHandler := handler.NewInventoryHandler(queries, hub)
			r.Route("/ingredients", inventoryHandler.RegisterRoutes)

			// Menu and recipes (availability derived from the ledger on read)
			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menu", menuHandler.RegisterRoutes)

			// Orders
			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, newOrderStore, cfg.MaxOrderTotal)

			newRevenueStore := func(db database.DBTX) service.RevenueStore {
				return database.New(db)
			}
			revenueService := service.NewRevenueService(pool, newRevenueStore)

			orderHandler := handler.NewOrderHandler(orderService, revenueService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Revenue reports (OWNER only)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("OWNER"))
				reportHandler := handler.NewReportHandler(queries)
				r.Route("/reports", reportHandler.RegisterRoutes)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
