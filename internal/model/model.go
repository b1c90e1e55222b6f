package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// DefaultRole applies to users without a role record.
const DefaultRole = RoleCustomer

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

type UserRole struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   Role
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    *string
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductPatch lists the product fields to overwrite; nil fields keep their stored value.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	ImageURL    *string
	Stock       *int
	Active      *bool
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusCompleted OrderStatus = "completed"
)

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Status          OrderStatus
	Total           decimal.Decimal
	Items           []OrderItem
	CustomerEmail   string
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a line item snapshot; Price is the unit price at order time.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Price     decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderEventType string

const (
	OrderEventPlaced    OrderEventType = "order.placed"
	OrderEventCancelled OrderEventType = "order.cancelled"
)

type OrderEvent struct {
	Type       OrderEventType   `json:"type"`
	OrderID    uuid.UUID        `json:"order_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Items      []OrderEventItem `json:"items"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func NewOrderEvent(t OrderEventType, order *Order) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return OrderEvent{
		Type:       t,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}
