// Package server assembles the HTTP surface.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "brokerfolio/internal/docs" // swagger docs
	"brokerfolio/internal/handlers"
	"brokerfolio/internal/middleware"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
)

// RefreshStatus reports the last successful scheduled refresh.
type RefreshStatus func() (time.Time, *services.RefreshResult)

// Deps are the collaborators the router is built from.
type Deps struct {
	DB             *gorm.DB
	Pricing        services.PricingServicer
	Renderer       *reports.Renderer
	PipelineAPIKey string
	// LastRefresh is optional; health omits refresh info without it.
	LastRefresh RefreshStatus
}

// NewRouter wires services and handlers into a gin engine serving /api/v1.
func NewRouter(d Deps) *gin.Engine {
	db := d.DB
	userService := services.NewUserService(db)
	activityService := services.NewActivityService(db)
	brokerService := services.NewBrokerService(db)
	instrumentService := services.NewInstrumentService(db)
	portfolioService := services.NewPortfolioService(db)
	investmentService := services.NewInvestmentService(db)
	messageService := services.NewMessageService(db)
	analyticsService := services.NewAnalyticsService(db)

	authHandler := handlers.NewAuthHandler(userService, activityService)
	brokerHandler := handlers.NewBrokerHandler(brokerService, activityService)
	instrumentHandler := handlers.NewInstrumentHandler(instrumentService, d.Pricing, activityService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, activityService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService, activityService)
	messageHandler := handlers.NewMessageHandler(messageService, activityService)
	activityHandler := handlers.NewActivityHandler(activityService)
	dashboardHandler := handlers.NewDashboardHandler(analyticsService)
	quoteHandler := handlers.NewQuoteHandler(d.Pricing)
	reportHandler := handlers.NewReportHandler(activityService, messageService, analyticsService, d.Renderer)
	pipelineHandler := handlers.NewPipelineHandler(d.Pricing)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", health(d.LastRefresh))

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(d.PipelineAPIKey))
	pipeline.POST("/prices", pipelineHandler.PushPrices)
	pipeline.POST("/refresh", pipelineHandler.TriggerRefresh)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	brokers := protected.Group("/brokers")
	brokers.POST("", brokerHandler.CreateBroker)
	brokers.GET("", brokerHandler.ListBrokers)
	brokers.GET("/:id", brokerHandler.GetBroker)
	brokers.PUT("/:id", brokerHandler.UpdateBroker)
	brokers.DELETE("/:id", brokerHandler.DeleteBroker)
	brokers.POST("/:id/ratings", brokerHandler.RateBroker)
	brokers.GET("/:id/ratings", brokerHandler.GetRatings)
	brokers.GET("/:id/snapshot", dashboardHandler.GetBrokerSnapshot)

	instruments := protected.Group("/instruments")
	instruments.POST("", instrumentHandler.CreateInstrument)
	instruments.GET("", instrumentHandler.ListInstruments)
	instruments.GET("/history", instrumentHandler.GetAllHistory)
	instruments.POST("/seed-defaults", instrumentHandler.SeedDefaults)
	instruments.POST("/refresh", instrumentHandler.RefreshPrices)
	instruments.GET("/:id", instrumentHandler.GetInstrument)
	instruments.DELETE("/:id", middleware.RequireAdmin(), instrumentHandler.DeleteInstrument)
	instruments.PUT("/:id/price", instrumentHandler.SetPrice)
	instruments.GET("/:id/prices", instrumentHandler.GetPriceHistory)
	instruments.GET("/:id/prices/export", instrumentHandler.ExportPriceHistory)

	portfolios := protected.Group("/portfolios")
	portfolios.POST("", portfolioHandler.CreatePortfolio)
	portfolios.GET("", portfolioHandler.ListPortfolios)
	portfolios.GET("/:id", portfolioHandler.GetPortfolio)
	portfolios.PUT("/:id", portfolioHandler.UpdatePortfolio)
	portfolios.DELETE("/:id", portfolioHandler.DeletePortfolio)
	portfolios.POST("/:id/holdings", portfolioHandler.AddHolding)
	portfolios.PUT("/:id/holdings/:holding_id", portfolioHandler.UpdateHolding)
	portfolios.DELETE("/:id/holdings/:holding_id", portfolioHandler.RemoveHolding)
	portfolios.GET("/:id/holdings/export", portfolioHandler.ExportHoldings)
	portfolios.GET("/:id/valuation", portfolioHandler.GetValuation)
	portfolios.GET("/:id/value-history", portfolioHandler.GetValueHistory)
	portfolios.GET("/:id/performance", portfolioHandler.GetPerformance)

	investments := protected.Group("/investments")
	investments.POST("", investmentHandler.CreateInvestment)
	investments.GET("", investmentHandler.ListInvestments)
	investments.GET("/upcoming", investmentHandler.UpcomingMaturities)
	investments.GET("/:id", investmentHandler.GetInvestment)
	investments.PUT("/:id", investmentHandler.UpdateInvestment)
	investments.DELETE("/:id", investmentHandler.DeleteInvestment)

	messages := protected.Group("/messages")
	messages.POST("", messageHandler.PostMessage)
	messages.GET("", messageHandler.ListMessages)
	messages.GET("/:id", messageHandler.GetMessage)
	messages.DELETE("/:id", messageHandler.DeleteMessage)

	protected.GET("/activity", activityHandler.ListActivity)
	protected.GET("/notifications", activityHandler.Notifications)
	protected.POST("/notifications/read", activityHandler.MarkNotificationsRead)

	protected.GET("/dashboard", dashboardHandler.GetDashboard)
	protected.GET("/dashboard/executive", dashboardHandler.GetExecutiveSummary)

	quotes := protected.Group("/quotes")
	quotes.GET("/test-connection", quoteHandler.TestConnection)
	quotes.GET("/:symbol", quoteHandler.GetQuote)

	reportRoutes := protected.Group("/reports")
	reportRoutes.GET("/activities", reportHandler.ActivitiesReport)
	reportRoutes.GET("/messages", reportHandler.MessagesReport)
	reportRoutes.GET("/executive", reportHandler.ExecutiveReport)

	return router
}

func health(lastRefresh RefreshStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if lastRefresh != nil {
			if at, result := lastRefresh(); result != nil {
				body["last_refresh"] = gin.H{
					"at":        at,
					"requested": result.Requested,
					"updated":   result.Updated,
					"failed":    len(result.Failed),
				}
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
