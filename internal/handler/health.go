package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Dependency is a backing service checked by the readiness probe.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func PostgresCheck(p Pinger) Dependency {
	return Dependency{Name: "postgres", Check: p.Ping}
}

func RedisCheck(client redis.UniversalClient) Dependency {
	return Dependency{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func RabbitMQCheck(conn *amqp.Connection) Dependency {
	return Dependency{Name: "rabbitmq", Check: func(context.Context) error {
		if conn.IsClosed() {
			return amqp.ErrClosed
		}
		return nil
	}}
}

type HealthHandler struct {
	deps []Dependency
}

func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	resp := gin.H{"status": "ok"}
	for _, dep := range h.deps {
		if err := dep.Check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", dep.Name: "unavailable"})
			return
		}
		resp[dep.Name] = "connected"
	}

	c.JSON(http.StatusOK, resp)
}
