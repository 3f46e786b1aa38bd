package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/infrastructure/resilience"
)

// EventBus publishes note events under "<prefix>.<event type>" and lets
// watchers subscribe to the whole prefix.
type EventBus struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, prefix string, options Options) (*EventBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 10
	}
	retryOnFailedConnect := false
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("notepeel"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetworkUnavailable, "connect nats", err)
	}
	return &EventBus{
		conn:     conn,
		prefix:   normalizePrefix(prefix),
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	subject := subjectFor(b.prefix, event.Type)

	call := func(_ context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyBusError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return asUnavailable("publish note event", err)
	}
	return nil
}

// SubscribeNoteEvents delivers every event under the prefix to handler until
// ctx is done. Undecodable messages are logged and skipped.
func (b *EventBus) SubscribeNoteEvents(ctx context.Context, handler func(context.Context, domain.NoteEvent) error) error {
	sub, err := b.conn.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			b.logger.Warn("note_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			b.logger.Error("note_event_handler_failed", "type", event.Type, "note_id", event.NoteID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return asUnavailable("subscribe note events", fmt.Errorf("nats flush: %w", err))
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "notepeel.notes"
	}
	return prefix
}

func subjectFor(prefix string, eventType domain.NoteEventType) string {
	return prefix + "." + string(eventType)
}

func encodeEvent(event domain.NoteEvent) ([]byte, error) {
	if event.Type == "" || event.NoteID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode note event", fmt.Errorf("incomplete event %+v", event))
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode note event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.NoteEvent, error) {
	var event domain.NoteEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.NoteEvent{}, fmt.Errorf("decode note event: %w", err)
	}
	if event.Type == "" || event.NoteID <= 0 {
		return domain.NoteEvent{}, fmt.Errorf("decode note event: missing type or note id")
	}
	return event, nil
}
