// Package mqtt provides MQTT client connectivity for Ironlatch Core.
//
// The broker decouples Core from the entry-control device network; the
// gateway translates between MQTT envelopes and the device-side
// session protocol:
//
//	Ironlatch Core ↔ MQTT Broker ↔ Entry-Control Gateway ↔ Locks
//
// The topic tree root comes from gateway.topic_prefix in config so
// multiple installations can share a broker. Connect with a Topics
// value built from that prefix:
//
//	topics := mqtt.NewTopics(cfg.Gateway.TopicPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.NodeReport(12, 0), 1,
//	    func(topic string, payload []byte) error {
//	        return handleReport(payload)
//	    })
//
// Subscriptions are restored automatically after a reconnect, and a
// last will on the system status topic announces unexpected offline
// transitions. TLS is expected for production brokers; anonymous
// plaintext access is for local development only.
package mqtt
