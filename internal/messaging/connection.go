// Package messaging owns the RabbitMQ side of the platform: connection
// setup, topology declaration, publishing and consuming.
package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

// Session is one connection with one channel, which is all a process needs.
type Session struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	logger  *zap.Logger
}

// Dial connects to the broker and opens a channel.
func Dial(cfg config.AMQPConfig, appName string, logger *zap.Logger) (*Session, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(appName)

	conn, err := amqp.DialConfig(cfg.BrokerURL(), amqp.Config{Properties: props})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	logger.Info("connected to broker", zap.String("exchange", cfg.Exchange))
	return &Session{Conn: conn, Channel: ch, logger: logger}, nil
}

// NotifyLost returns a channel that receives the error when the connection
// drops. It is closed without a value on a clean shutdown.
func (s *Session) NotifyLost() <-chan *amqp.Error {
	return s.Conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close closes the channel and the connection.
func (s *Session) Close() error {
	if err := s.Channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		s.logger.Warn("closing channel", zap.Error(err))
	}
	if err := s.Conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// Open dials the broker and declares the topology.
func Open(cfg config.AMQPConfig, appName string, logger *zap.Logger) (*Session, error) {
	s, err := Dial(cfg, appName, logger)
	if err != nil {
		return nil, err
	}
	if err := DeclareTopology(s.Channel, cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Health fails once the connection is gone.
func (s *Session) Health(ctx context.Context) error {
	if s.Conn.IsClosed() {
		return errors.New("broker connection closed")
	}
	return nil
}
