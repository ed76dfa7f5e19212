// Package publisher owns the broker topology and publishes coordinator
// tasks to it. Direct searches get a dedicated queue so their blocking,
// single-concurrency lane never starves the other task types.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
)

// Broker topology. Consumers bind by these names, so they live here in one
// place rather than being restated per package.
const (
	ExchangeName = "blastxplorer.direct"
	ExchangeDLX  = "blastxplorer.dlx"

	QueueDirect      = "blast_direct_tasks"
	QueueTasks       = "blast_tasks"
	QueueDeadLetters = "blast_dead_letters"

	RoutingKeyDirect = "direct"
	RoutingKeyTasks  = "tasks"

	exchangeType = "direct"

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

// Publisher publishes tasks to the message broker.
type Publisher interface {
	Publish(ctx context.Context, task *domain.Task) error
	Close() error
}

type rabbitPublisher struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewRabbitMQPublisher connects to the broker and declares the full
// topology: both task queues, the dead letter exchange and its queue.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:    url,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	// Watch for connection closures and reconnect
	go p.watchConnection()

	return p, nil
}

func queueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange": ExchangeDLX,
		"x-queue-type":           "quorum",
	}
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", ExchangeName),
		zap.Strings("queues", []string{QueueDirect, QueueTasks}),
	)

	return nil
}

// DeclareTopology declares the exchange, both task queues, and the dead
// letter pair. Publisher and consumers both call it on every (re)connect,
// so whichever side comes up first creates an identical layout.
// Dead-lettered messages keep their original routing key, so the DLQ is
// bound under both keys.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeDLX, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueDeadLetters, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	for _, key := range []string{RoutingKeyDirect, RoutingKeyTasks} {
		if err := ch.QueueBind(QueueDeadLetters, key, ExchangeDLX, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
		}
	}

	queues := []struct {
		name string
		key  string
	}{
		{QueueDirect, RoutingKeyDirect},
		{QueueTasks, RoutingKeyTasks},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, queueArgs()); err != nil {
			return fmt.Errorf("rabbitmq: declare queue %s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, q.key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: bind queue %s: %w", q.name, err)
		}
	}
	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		// Block until the connection closes
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error))
		if !ok {
			// Channel closed normally
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)

		delay := reconnectDelay
		for {
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			p.mu.RUnlock()

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = delay * 2
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

// RoutingKey maps a task type to the queue lane it belongs on. Direct
// searches get their own lane; everything else shares the general one.
func RoutingKey(t domain.TaskType) string {
	if t == domain.TaskSearchDirect {
		return RoutingKeyDirect
	}
	return RoutingKeyTasks
}

func (p *rabbitPublisher) Publish(ctx context.Context, task *domain.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal task: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	// Get confirmation channel
	confirm := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(publishCtx,
		ExchangeName,
		RoutingKey(task.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.RunID.String(),
			Type:         string(task.Type),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	// Wait for broker confirmation
	select {
	case ack := <-confirm:
		if !ack.Ack {
			return fmt.Errorf("rabbitmq: broker nacked message (run_id=%s)", task.RunID)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("rabbitmq: publish confirmation timeout (run_id=%s)", task.RunID)
	}

	p.logger.Debug("Published task",
		zap.String("type", string(task.Type)),
		zap.String("run_id", task.RunID.String()),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
