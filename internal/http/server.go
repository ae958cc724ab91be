// README: API server: route registration and lifecycle.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dot/internal/http/handlers"
	"dot/internal/http/middleware"
	"dot/internal/infra"
	"dot/internal/logger"
	"dot/internal/modules/location"
	"dot/internal/modules/order"
	"dot/internal/modules/rating"
	"dot/internal/modules/settings"
	"dot/internal/modules/stats"
	"dot/internal/modules/wallet"
	"dot/internal/types"
	"dot/internal/ws"
)

type ServerDeps struct {
	Orders    *order.Service
	Wallets   *wallet.Service
	Ratings   *rating.Service
	Settings  *settings.Service
	Stats     *stats.Service
	Locations *location.Service
	WS        *ws.Handler
	Verifier  infra.TokenVerifier
	Log       logger.Logger
}

type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

func NewServer(addr string, deps ServerDeps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	orderHandler := handlers.NewOrderHandler(deps.Orders)
	driverHandler := handlers.NewDriverHandler(deps.Orders, deps.Wallets)
	adminHandler := handlers.NewAdminHandler(deps.Orders, deps.Wallets, deps.Settings, deps.Stats, deps.Locations)
	ratingHandler := handlers.NewRatingHandler(deps.Ratings)

	// recipient link, authorized by the token itself
	r.GET("/api/location/:token", orderHandler.GetByToken)
	r.POST("/api/location/:token", orderHandler.SetRecipientLocation)

	auth := r.Group("/", middleware.Auth(deps.Verifier))

	api := auth.Group("/api")
	{
		api.POST("/orders/taxi", orderHandler.CreateTaxi)
		api.POST("/orders/delivery", orderHandler.CreateDelivery)
		api.GET("/orders/mine", orderHandler.Mine)
		api.GET("/orders/:id", orderHandler.Get)
		api.GET("/orders/:id/history", orderHandler.History)
		api.POST("/orders/:id/cancel", orderHandler.Cancel)
		api.POST("/orders/:id/rating", ratingHandler.Rate)

		api.GET("/drivers/:id/rating", ratingHandler.DriverSummary)
		api.GET("/drivers/:id/ratings", ratingHandler.DriverRatings)
	}

	driver := auth.Group("/api/driver", middleware.RequireRole(types.RoleDriver))
	{
		driver.GET("/orders/pending", driverHandler.ListPending)
		driver.POST("/orders/:id/accept", driverHandler.Accept)
		driver.POST("/orders/:id/status", driverHandler.AdvanceStatus)
		driver.GET("/wallet", driverHandler.Wallet)
		driver.GET("/wallet/transactions", driverHandler.WalletTransactions)
	}

	admin := auth.Group("/api/admin", middleware.RequireRole(types.RoleAdmin))
	{
		admin.POST("/wallets/topup", adminHandler.TopUp)
		admin.GET("/stats/dashboard", adminHandler.Dashboard)
		admin.GET("/stats/drivers/:id", adminHandler.DriverStats)
		admin.GET("/orders", adminHandler.Orders)
		admin.GET("/settings", adminHandler.ListSettings)
		admin.PUT("/settings/:key", adminHandler.SetSetting)
		admin.GET("/drivers/locations", adminHandler.DriverLocations)
		admin.GET("/drivers/nearby", adminHandler.NearbyDrivers)
	}

	auth.GET("/ws", func(c *gin.Context) {
		deps.WS.Serve(c.Writer, c.Request, middleware.CallerUID(c), middleware.CallerRole(c))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: deps.Log,
	}
}

func (s *Server) Run() error {
	s.log.Info("http server listening", logger.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
