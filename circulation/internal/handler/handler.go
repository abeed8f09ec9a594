package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/pkg/middleware"
	"github.com/smabibs/SiPerpus/pkg/validate"
)

type Handler struct {
	circulation CirculationService
	catalog     CatalogService
	session     middleware.Session
	origins     []string
	metrics     http.Handler
	log         *zap.Logger
}

type Option func(*Handler)

func WithSession(cfg middleware.Session) Option {
	return func(h *Handler) {
		h.session = cfg
	}
}

// WithAllowOrigins lists the browser origins allowed to call the API with
// the session cookie. Without it any origin may call, without credentials.
func WithAllowOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = origins
	}
}

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

func New(circulation CirculationService, catalog CatalogService, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		circulation: circulation,
		catalog:     catalog,
		log:         log.Named("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(echomw.CORSWithConfig(h.corsConfig()))
	e.Validator = validate.NewCustomValidator()

	base := e.Group("", middleware.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	if h.metrics != nil {
		base.GET("/metrics", echo.WrapHandler(h.metrics))
	}

	api := e.Group("/api/v1",
		echomw.RequestLoggerWithConfig(middleware.RequestLoggerConfig(h.log)),
		echomw.RequestID(),
		middleware.NewRateLimiter(apiRPS),
		middleware.SessionCookie(h.session),
	)

	api.POST("/loans", h.Borrow)
	api.GET("/loans", h.ListLoans)
	api.PUT("/loans/:id/return", h.ReturnLoan)
	api.POST("/scan/borrow", h.ScanBorrow)
	api.POST("/scan/return", h.ScanReturn)

	api.POST("/reservations", h.Reserve)
	api.GET("/reservations", h.ListReservations)
	api.PATCH("/reservations/:id", h.ChangeReservationStatus)
	api.DELETE("/reservations/:id", h.CancelReservation)

	api.POST("/bulk", h.Bulk)
	api.GET("/audit", h.ListAudit)
	api.GET("/stats", h.Stats)

	api.POST("/titles", h.CreateTitle)
	api.GET("/titles/:id", h.GetTitle)
	api.PUT("/titles/:id/copies", h.ResizeTitle)
	api.DELETE("/titles/:id", h.DeleteTitle)

	api.POST("/members", h.CreateMember)
	api.GET("/members/:id", h.GetMember)
	api.PATCH("/members/:id/status", h.SetMemberStatus)
	api.DELETE("/members/:id", h.DeleteMember)

	return e
}

func (h *Handler) corsConfig() echomw.CORSConfig {
	cfg := echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}
	if len(h.origins) > 0 {
		cfg.AllowOrigins = h.origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps a service error onto the status of its kind.
func (h *Handler) httpError(err error) error {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal {
		h.log.Error("internal error", zap.Error(err))
	}
	return echo.NewHTTPError(errs.MetadataFor(kind).HTTPStatus, err.Error())
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// bind decodes and validates the request into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
