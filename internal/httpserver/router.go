package httpserver

import (
	"net/http"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/auth"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/expenses"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/health"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/httputil"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/notes"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/reports"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/transactions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	AuthHandler         *auth.Handler
	NotesHandler        *notes.Handler
	ExpensesHandler     *expenses.Handler
	TransactionsHandler *transactions.Handler
	PositionsHandler    *positions.Handler
	MarketHandler       *marketdata.Handler
	ReportsHandler      *reports.Handler
	HealthHandler       *health.Handler
	AuthService         *auth.Service
	WSHandler           http.Handler
	RateLimiter         *RateLimiter
	CORSOrigins         []string
	Log                 zerolog.Logger
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

type userIDHandler func(w http.ResponseWriter, r *http.Request, userID, id string)

// withUser adapts an owner-scoped handler. Routes using it sit behind WithAuth.
func withUser(fn userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, userID)
	}
}

func withUserParam(param string, fn userIDHandler) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		fn(w, r, userID, chi.URLParam(r, param))
	})
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(SecurityHeaders)
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware)
	}

	r.Get("/health", d.HealthHandler.Get)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", d.AuthHandler.Register)
		r.Post("/signin", d.AuthHandler.Login)
		r.Get("/ws", d.WSHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/profile", withUser(d.AuthHandler.Me))

			r.Get("/notes", withUser(d.NotesHandler.List))
			r.Post("/notes", withUser(d.NotesHandler.Create))
			r.Get("/notes/{id}", withUserParam("id", d.NotesHandler.Get))
			r.Put("/notes/{id}", withUserParam("id", d.NotesHandler.Update))
			r.Delete("/notes/{id}", withUserParam("id", d.NotesHandler.Delete))

			r.Get("/expenses", withUser(d.ExpensesHandler.List))
			r.Post("/expenses", withUser(d.ExpensesHandler.Create))
			r.Get("/expenses/{id}", withUserParam("id", d.ExpensesHandler.Get))
			r.Put("/expenses/{id}", withUserParam("id", d.ExpensesHandler.Update))
			r.Delete("/expenses/{id}", withUserParam("id", d.ExpensesHandler.Delete))

			r.Get("/transactions", withUser(d.TransactionsHandler.List))
			r.Post("/transactions", withUser(d.TransactionsHandler.Create))
			r.Get("/transactions/{id}", withUserParam("id", d.TransactionsHandler.Get))
			r.Put("/transactions/{id}", withUserParam("id", d.TransactionsHandler.Update))
			r.Delete("/transactions/{id}", withUserParam("id", d.TransactionsHandler.Delete))

			r.Get("/buy_stocks", withUser(d.PositionsHandler.ListPurchases))
			r.Post("/buy_stocks", withUser(d.PositionsHandler.CreateBuy))
			r.Get("/buy_stocks/{id}", withUserParam("id", d.PositionsHandler.GetPurchase))
			r.Put("/buy_stocks/{id}", withUserParam("id", d.PositionsHandler.UpdateBuy))
			r.Delete("/buy_stocks/{id}", withUserParam("id", d.PositionsHandler.DeleteBuy))

			r.Get("/sell_stocks", withUser(d.PositionsHandler.ListSales))
			r.Post("/sell_stocks", withUser(d.PositionsHandler.CreateSale))
			r.Get("/sell_stocks/{id}", withUserParam("id", d.PositionsHandler.GetSale))
			r.Put("/sell_stocks/{id}", withUserParam("id", d.PositionsHandler.UpdateSale))
			r.Delete("/sell_stocks/{id}", withUserParam("id", d.PositionsHandler.DeleteSale))

			r.Get("/user_stocks", withUser(d.PositionsHandler.ListPositions))
			r.Get("/user_stocks/{symbol}", withUserParam("symbol", d.PositionsHandler.GetPosition))

			r.Get("/all_stocks_data_of_users/{symbol}", withUserParam("symbol", d.ReportsHandler.ForSymbol))

			r.Get("/all_stock_datas/{symbol}", func(w http.ResponseWriter, r *http.Request) {
				d.MarketHandler.StockData(w, r, chi.URLParam(r, "symbol"))
			})
			r.Post("/stock_data/{symbol}/refresh", func(w http.ResponseWriter, r *http.Request) {
				d.MarketHandler.Refresh(w, r, chi.URLParam(r, "symbol"))
			})
		})
	})
	return r
}
