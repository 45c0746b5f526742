package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/service"
	"glowdesk/backend/internal/store"
)

const (
	actorKey       = "actor"
	maxBodyBytes   = 1 << 20
	defaultBuckets = 7
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	exposeMetrics bool
}

func New(svc *service.Service, auth *AuthManager, logger *zap.Logger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger.Named("http"),
		allowedOrigin: allowedOrigin,
	}
}

// WithMetrics serves Prometheus metrics on /metrics.
func (a *API) WithMetrics(enabled bool) *API {
	a.exposeMetrics = enabled
	return a
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), instrument(), a.requestLogger(), securityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{a.allowedOrigin},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/healthz", a.handleHealth)
	if a.exposeMetrics {
		r.GET("/metrics", metricsHandler())
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", a.handleLogin)

	authed := v1.Group("", a.requireAuth("admin"))
	authed.POST("/auth/logout", a.handleLogout)
	authed.GET("/auth/me", a.handleMe)
	authed.POST("/auth/password", a.handleChangePassword)

	authed.GET("/products", a.handleListProducts)
	authed.POST("/products", a.handleCreateProduct)
	authed.GET("/products/:id", a.handleGetProduct)
	authed.PATCH("/products/:id", a.handleUpdateProduct)
	authed.DELETE("/products/:id", a.handleDeleteProduct)

	authed.GET("/sales", a.handleListSales)
	authed.POST("/sales", a.handleSellProduct)
	authed.POST("/sales/record", a.handleRecordSale)
	authed.GET("/sales/:id/profit", a.handleSaleProfit)

	authed.GET("/documents", a.handleListDocuments)
	authed.GET("/documents/stats", a.handleDocumentStats)
	authed.POST("/documents", a.handleUploadDocument)
	authed.DELETE("/documents/:id", a.handleDeleteDocument)

	authed.GET("/settings", a.handleSettings)
	authed.POST("/settings/theme/toggle", a.handleToggleTheme)
	authed.PUT("/settings/currency", a.handleUpdateCurrency)
	authed.PUT("/settings/logo", a.handleUpdateLogo)

	authed.GET("/dashboard", a.handleDashboard)
	authed.GET("/reports", a.handleReport)
	authed.GET("/reports/buckets/:granularity", a.handleBuckets)

	return r
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		a.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(startedAt)),
		)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

func (a *API) requireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(c, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(c, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		// A token is only good while the store session it was issued for
		// is still open.
		user, err := a.service.CurrentUser(c.Request.Context())
		if errors.Is(err, store.ErrNotFound) || (err == nil && user.Email != actor.Email) {
			writeError(c, http.StatusUnauthorized, errSessionEnded)
			return
		}
		if err != nil {
			a.fail(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.service.Login(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}

	resp, err := a.auth.Issue(user)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleLogout(c *gin.Context) {
	actor, _ := service.ActorFromContext(c.Request.Context())
	if err := a.auth.Revoke(c.Request.Context(), actor); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.service.Logout(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleMe(c *gin.Context) {
	user, err := a.service.CurrentUser(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) handleChangePassword(c *gin.Context) {
	var req domain.PasswordChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.service.ChangePassword(c.Request.Context(), req); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context(), domain.ProductFilter{
		Query:  c.Query("q"),
		Status: domain.ProductStatus(c.Query("status")),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *API) handleCreateProduct(c *gin.Context) {
	var input domain.ProductInput
	if !bindJSON(c, &input) {
		return
	}
	product, err := a.service.CreateProduct(c.Request.Context(), input)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (a *API) handleGetProduct(c *gin.Context) {
	product, err := a.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleUpdateProduct(c *gin.Context) {
	var patch domain.ProductPatch
	if !bindJSON(c, &patch) {
		return
	}
	product, err := a.service.UpdateProduct(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleDeleteProduct(c *gin.Context) {
	if err := a.service.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleListSales(c *gin.Context) {
	filter := domain.SaleFilter{Query: c.Query("q")}
	if raw := c.Query("date"); raw != "" {
		date, err := domain.ParseDate(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		filter.Date = date
	}

	sales, err := a.service.ListSales(c.Request.Context(), filter)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleSellProduct(c *gin.Context) {
	var draft domain.SaleDraft
	if !bindJSON(c, &draft) {
		return
	}
	sale, err := a.service.SellProduct(c.Request.Context(), draft)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (a *API) handleRecordSale(c *gin.Context) {
	var input domain.SaleInput
	if !bindJSON(c, &input) {
		return
	}
	sale, err := a.service.RecordSale(c.Request.Context(), input)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (a *API) handleSaleProfit(c *gin.Context) {
	current, historical, err := a.service.SaleProfit(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sale_id":           c.Param("id"),
		"profit":            current,
		"historical_profit": historical,
	})
}

func (a *API) handleListDocuments(c *gin.Context) {
	docs, err := a.service.ListDocuments(c.Request.Context(), domain.DocumentFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (a *API) handleDocumentStats(c *gin.Context) {
	stats, err := a.service.DocumentStats(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *API) handleUploadDocument(c *gin.Context) {
	var input domain.DocumentInput
	if !bindJSON(c, &input) {
		return
	}
	doc, err := a.service.UploadDocument(c.Request.Context(), input)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (a *API) handleDeleteDocument(c *gin.Context) {
	if err := a.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleSettings(c *gin.Context) {
	settings, err := a.service.Settings(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (a *API) handleToggleTheme(c *gin.Context) {
	theme, err := a.service.ToggleTheme(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

type valueRequest struct {
	Value string `json:"value"`
}

func (a *API) handleUpdateCurrency(c *gin.Context) {
	var req valueRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.service.UpdateCurrency(c.Request.Context(), req.Value); err != nil {
		a.fail(c, err)
		return
	}
	a.handleSettings(c)
}

func (a *API) handleUpdateLogo(c *gin.Context) {
	var req valueRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.service.UpdateCompanyLogo(c.Request.Context(), req.Value); err != nil {
		a.fail(c, err)
		return
	}
	a.handleSettings(c)
}

func (a *API) handleDashboard(c *gin.Context) {
	summary, err := a.service.Dashboard(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *API) handleReport(c *gin.Context) {
	report, err := a.service.Report(c.Request.Context(), domain.Period(c.Query("period")))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *API) handleBuckets(c *gin.Context) {
	n := defaultBuckets
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, errors.New("n must be an integer"))
			return
		}
		n = parsed
	}

	buckets, err := a.service.Buckets(c.Request.Context(), domain.Granularity(c.Param("granularity")), n)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

// fail maps domain errors onto HTTP statuses.
func (a *API) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidTransaction):
		writeError(c, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(c, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, err)
	default:
		a.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		writeError(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(c *gin.Context, status int, err error) {
	message := "request failed"
	if err != nil {
		message = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
