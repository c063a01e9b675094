//go:build integration

package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ironlatch/ironlatch-core/internal/infrastructure/config"
)

// Broker-backed tests. They need a Mosquitto (or compatible) broker at
// 127.0.0.1:1883:
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func brokerConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegrationConnectAndClose(t *testing.T) {
	client, err := Connect(brokerConfig("ironlatch-it-connect"), NewTopics(""))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestIntegrationConnectRefused(t *testing.T) {
	cfg := brokerConfig("ironlatch-it-refused")
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg, NewTopics("")); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegrationRoundtripWithPrefix(t *testing.T) {
	topics := NewTopics("ironlatch-it")

	pub, err := Connect(brokerConfig("ironlatch-it-pub"), topics)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(brokerConfig("ironlatch-it-sub"), topics)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topic := topics.NodeReport(12, 0)
	received := make(chan []byte, 1)
	var once sync.Once

	err = sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		once.Do(func() { received <- payload })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	want := []byte{0x63, 0x03, 0x01, 0x01}
	if err := pub.Publish(topic, want, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(want) {
			t.Errorf("received %x, want %x", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestIntegrationUnsubscribeStopsDelivery(t *testing.T) {
	topics := NewTopics("ironlatch-it")

	client, err := Connect(brokerConfig("ironlatch-it-unsub"), topics)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := topics.NodeReport(9, 0)
	received := make(chan struct{}, 4)

	if err := client.Subscribe(topic, 1, func(string, []byte) error {
		received <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(topic, []byte{0x01}, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-received:
		t.Error("handler called after Unsubscribe()")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestIntegrationHandlerPanicLogged(t *testing.T) {
	topics := NewTopics("ironlatch-it")

	client, err := Connect(brokerConfig("ironlatch-it-panic"), topics)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	logger := &recordingLogger{}
	client.SetLogger(logger)

	topic := topics.NodeReport(3, 0)
	handled := make(chan struct{}, 1)
	if err := client.Subscribe(topic, 1, func(string, []byte) error {
		defer func() { handled <- struct{}{} }()
		panic("bad frame")
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(topic, []byte{0xFF}, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	time.Sleep(100 * time.Millisecond)
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) == 0 {
		t.Error("panic was not logged")
	}
}
