package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mindmate/internal/model"
	"mindmate/internal/platform/rabbitmq"
)

var errSessionGone = errors.New("session no longer exists")

type MessageStore interface {
	Create(message *model.Message) error
}

type SessionChecker interface {
	Exists(sessionID uint) (bool, error)
}

// MessagePersistWorker drains the persist queue into the messages table.
type MessagePersistWorker struct {
	conn      *amqp.Connection
	messages  MessageStore
	sessions  SessionChecker
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMessagePersistWorker(
	conn *amqp.Connection,
	messages MessageStore,
	sessions SessionChecker,
	queueName string,
	log *zap.Logger,
) *MessagePersistWorker {
	return &MessagePersistWorker{
		conn:      conn,
		messages:  messages,
		sessions:  sessions,
		queueName: queueName,
		log:       log.Named("persist_worker"),
	}
}

func (w *MessagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				w.handle(d)
			}
		}
	}()

	w.log.Info("worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *MessagePersistWorker) handle(d amqp.Delivery) {
	err := w.Persist(d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errSessionGone):
		// The session was deleted while the message sat in the queue.
		w.log.Info("drop message for deleted session", zap.Error(err))
		_ = d.Ack(false)
	default:
		w.log.Error("persist message failed", zap.Error(err))
		_ = d.Nack(false, false)
	}
}

// Persist decodes one queued message and stores it unless its session is gone.
func (w *MessagePersistWorker) Persist(body []byte) error {
	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode message failed: %w", err)
	}
	if w.sessions != nil {
		exists, err := w.sessions.Exists(msg.SessionID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("session %d: %w", msg.SessionID, errSessionGone)
		}
	}
	return w.messages.Create(&msg)
}

func (w *MessagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
