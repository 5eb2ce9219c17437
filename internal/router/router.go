package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sajikita/pos-api/internal/config"
	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/enum"
	"github.com/sajikita/pos-api/internal/handler"
	mw "github.com/sajikita/pos-api/internal/middleware"
	"github.com/sajikita/pos-api/internal/service"
	"github.com/sajikita/pos-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, restaurant scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, caps database.Capabilities) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // SvelteKit dev server
			"https://kasir.sajikita.id",     // Production cashier app
			"https://stg-kasir.sajikita.id", // Staging cashier app
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
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Restaurant-scoped routes
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			// Checkout and order tracking
			checkoutService := service.NewCheckoutService(pool, func(db database.DBTX) service.CheckoutStore {
				return database.New(db)
			})
			orderHandler := handler.NewOrderHandler(checkoutService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Discount pre-check
			discountHandler := handler.NewDiscountHandler(queries)
			discountHandler.RegisterRoutes(r)

			// Loyalty balances and history
			customerHandler := handler.NewCustomerHandler(queries)
			customerHandler.RegisterRoutes(r)

			// Stock: reads for all staff, manual adjustments for managers up
			stockService := service.NewStockService(pool, func(db database.DBTX) service.StockStore {
				return database.New(db)
			})
			stockHandler := handler.NewStockHandler(stockService, queries, caps)
			r.Group(func(r chi.Router) {
				r.Get("/stock/low-count", stockHandler.LowCount)
				r.Get("/products/{id}/stock-logs", stockHandler.ListLogs)
			})
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
				r.Post("/stock/adjustments", stockHandler.Adjust)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
