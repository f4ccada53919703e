package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/config"
	"github.com/helioswap/dca-engine/service"
	"github.com/helioswap/dca-engine/storage"
)

type Server struct {
	cfg      *config.Config
	dca      service.DCA
	redis    *storage.RedisStorage
	sdClient *statsd.Client
	logger   *logrus.Logger
}

// NewServer returns a new server.
func NewServer(
	cfg *config.Config,
	dca service.DCA,
	redis *storage.RedisStorage,
	sdClient *statsd.Client,
	logger *logrus.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		dca:      dca,
		redis:    redis,
		sdClient: sdClient,
		logger:   logger,
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M")) // set maximum allowed size for a request body to 2M
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.Validator = &RequestValidator{Validator: validator.New()}

	e.GET("/ping", s.Ping)

	e.GET("/config", s.GetConfig)
	e.PUT("/config", s.UpdateConfig)

	user := e.Group("/user")
	user.GET("/config", s.GetUserConfig)
	user.PUT("/config", s.UpdateUserConfig)
	user.POST("/tips/deposit", s.DepositTip)
	user.POST("/tips/withdraw", s.WithdrawTip)

	orders := e.Group("/orders")
	orders.POST("", s.CreateOrder)
	orders.PUT("", s.ModifyOrder)
	orders.DELETE("", s.CancelOrder)
	orders.GET("/:user", s.GetUserOrders)

	e.POST("/purchase", s.PerformPurchase)
	e.GET("/executions/:user", s.GetExecutions)

	return e.Start(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "DCA engine server is running")
}
