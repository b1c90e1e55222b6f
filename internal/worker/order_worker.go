package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/storefront-api/internal/model"
)

const (
	ordersExchange = "orders"
	inventoryQueue = "orders.inventory"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	eventBinding   = "order.*"
)

// Consumer is the part of *amqp.Channel the worker reads from.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type IdempotencyStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

// OrderWorker consumes order events and drops cached products whose
// stock changed.
type OrderWorker struct {
	consumer    Consumer
	idempotency IdempotencyStore
	products    ProductInvalidator
	log         *slog.Logger
	done        chan struct{}
	wg          sync.WaitGroup
}

func NewOrderWorker(consumer Consumer, idempotency IdempotencyStore, products ProductInvalidator, log *slog.Logger) *OrderWorker {
	return &OrderWorker{
		consumer:    consumer,
		idempotency: idempotency,
		products:    products,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the orders exchange, the inventory queue and its DLX/DLQ.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ordersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare orders exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, inventoryQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(inventoryQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": inventoryQueue,
	}); err != nil {
		return fmt.Errorf("declare inventory queue: %w", err)
	}
	if err := ch.QueueBind(inventoryQueue, eventBinding, ordersExchange, false, nil); err != nil {
		return fmt.Errorf("bind inventory queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.consumer.Consume(inventoryQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started")
	return nil
}

// Stop signals the consume loop and waits for it to exit.
func (w *OrderWorker) Stop() {
	close(w.done)
	w.wg.Wait()
}

func idempotencyKey(evt model.OrderEvent) string {
	return fmt.Sprintf("order_event:%s:%s", evt.Type, evt.OrderID)
}

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var evt model.OrderEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if evt.OrderID == uuid.Nil || (evt.Type != model.OrderEventPlaced && evt.Type != model.OrderEventCancelled) {
		w.log.Error("malformed order event", "type", evt.Type, "order_id", evt.OrderID)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", evt.OrderID, "type", evt.Type)

	key := idempotencyKey(evt)
	seen, err := w.idempotency.Seen(ctx, key)
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if seen {
		log.Info("order event already handled, skipping")
		_ = msg.Ack(false)
		return
	}

	ids := make([]uuid.UUID, 0, len(evt.Items))
	for _, item := range evt.Items {
		ids = append(ids, item.ProductID)
	}
	if err := w.products.Invalidate(ctx, ids...); err != nil {
		log.Error("invalidate products", "error", err)
		_ = msg.Nack(false, true)
		return
	}

	if err := w.idempotency.Remember(ctx, key); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order event handled", "products", len(ids))
}
