// Package broker connects to the MQTT broker and feeds door commands to the
// executor.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/micro-ha/pod-door-controller/internal/model"
)

// Submitter receives every message delivered on a subscribed topic.
type Submitter interface {
	Submit(ctx context.Context, msg model.Inbound) error
}

// Subscriber keeps one broker session alive and subscribes to a fixed topic
// set on every connection. Reconnects follow autopaho's backoff.
type Subscriber struct {
	cfg       model.BrokerConfig
	topics    []string
	submitter Submitter
	logger    *slog.Logger
	clientID  string
	connected atomic.Bool
}

func New(cfg model.BrokerConfig, topics []string, submitter Submitter, logger *slog.Logger) (*Subscriber, error) {
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "pod-door-controller"
	}
	clientID = clientID + "-" + uuid.NewString()[:8]
	return &Subscriber{
		cfg:       cfg,
		topics:    append([]string(nil), topics...),
		submitter: submitter,
		logger:    logger.With("component", "broker", "client_id", clientID),
		clientID:  clientID,
	}, nil
}

// Connected reports whether the broker session is currently up.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// ClientID returns the MQTT client identifier used for this process.
func (s *Subscriber) ClientID() string {
	return s.clientID
}

// Run connects and blocks until ctx is cancelled. It returns an error only
// when the connection cannot be configured.
func (s *Subscriber) Run(ctx context.Context) error {
	serverURL, err := s.cfg.URL()
	if err != nil {
		return fmt.Errorf("broker url: %w", err)
	}
	cm, err := autopaho.NewConnection(ctx, s.clientConfig(ctx, serverURL))
	if err != nil {
		return fmt.Errorf("broker connection: %w", err)
	}
	s.logger.Info("broker connecting", "url", serverURL.String(), "topics", s.topics)

	<-cm.Done()
	s.connected.Store(false)
	s.logger.Info("broker connection closed")
	return nil
}

func (s *Subscriber) clientConfig(ctx context.Context, serverURL *url.URL) autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		ServerUrls:     []*url.URL{serverURL},
		KeepAlive:      s.cfg.KeepAlive(),
		ConnectTimeout: s.cfg.ConnectTimeout(),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.connected.Store(true)
			s.logger.Info("broker connected")
			if _, err := cm.Subscribe(ctx, s.subscribePacket()); err != nil {
				s.logger.Error("broker subscribe failed", "err", err)
				return
			}
			s.logger.Info("broker subscribed", "topics", s.topics)
		},
		OnConnectError: func(err error) {
			s.connected.Store(false)
			s.logger.Warn("broker connect failed", "err", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if pr.Packet == nil {
						return false, nil
					}
					return true, s.deliver(ctx, pr.Packet.Topic, pr.Packet.Payload)
				},
			},
			OnClientError: func(err error) {
				s.connected.Store(false)
				s.logger.Warn("broker client error", "err", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				s.connected.Store(false)
				s.logger.Warn("broker disconnected", "reason_code", d.ReasonCode)
			},
		},
	}
	if s.cfg.Username != "" {
		cfg.ConnectUsername = s.cfg.Username
		cfg.ConnectPassword = []byte(s.cfg.Password)
	}
	return cfg
}

func (s *Subscriber) subscribePacket() *paho.Subscribe {
	subs := make([]paho.SubscribeOptions, 0, len(s.topics))
	for _, topic := range s.topics {
		subs = append(subs, paho.SubscribeOptions{Topic: topic, QoS: s.cfg.QoS})
	}
	return &paho.Subscribe{Subscriptions: subs}
}

// deliver hands one publish to the executor. The payload is copied because
// the client may reuse its buffer.
func (s *Subscriber) deliver(ctx context.Context, topic string, payload []byte) error {
	msg := model.Inbound{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
		Source:  model.SourceMQTT,
	}
	s.logger.Debug("broker message received", "topic", topic, "bytes", len(payload))
	if err := s.submitter.Submit(ctx, msg); err != nil {
		s.logger.Warn("broker message dropped", "topic", topic, "err", err)
		return err
	}
	return nil
}
