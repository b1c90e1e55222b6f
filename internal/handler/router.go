package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/middleware"
)

type Handlers struct {
	Health  *HealthHandler
	Auth    *AuthHandler
	Product *ProductHandler
	Order   *OrderHandler
	Role    *RoleHandler
}

// NewRouter registers every route. Admin checks happen in the services, so
// the only middleware on v1 is caller resolution.
func NewRouter(h Handlers, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authenticate(jwtSecret))

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	products := v1.Group("/products")
	{
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.GetByID)
		products.POST("", h.Product.Create)
		products.PATCH("/:id", h.Product.Update)
		products.DELETE("/:id", h.Product.Delete)
	}

	orders := v1.Group("/orders")
	{
		orders.POST("", h.Order.PlaceOrder)
		orders.GET("", h.Order.ListOwn)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
	}

	admin := v1.Group("/admin")
	{
		admin.GET("/products", h.Product.ListAll)
		admin.GET("/orders", h.Order.ListAll)
	}

	v1.GET("/roles/me", h.Role.Me)
	v1.POST("/roles/bootstrap", h.Role.Bootstrap)
	v1.PUT("/users/:id/role", h.Role.SetRole)

	return router
}
