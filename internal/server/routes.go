package server

import (
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

// Handlers は公開するハンドラの束
type Handlers struct {
	Health       *handler.HealthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
}

// /api/v1 以下にまとめて登録
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, m *metrics.Metrics) {
	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}

	api := e.Group("/api/v1")
	api.Use(middleware.RequestMetrics(m))

	// 公開
	h.Product.RegisterRoutes(api)

	// ログイン必須
	auth := middleware.AuthJWT(jwtSecret)
	h.Cart.RegisterRoutes(api, auth)
	h.Order.RegisterRoutes(api, auth)

	// 管理者
	admin := api.Group("/admin")
	admin.Use(auth)
	admin.Use(middleware.AdminRoleGuard())
	h.AdminProduct.RegisterRoutes(admin)
	h.AdminOrder.RegisterRoutes(admin)
}
