// Package gateway connects Ironlatch Core to the entry-control gateway
// over MQTT.
//
// The gateway process owns the device radio; Core only ever sees JSON
// envelopes carrying raw command-class frames. This package wraps that
// envelope traffic in a per-endpoint Client that satisfies the transport
// contract used by the user code manager.
//
// # Architecture
//
//	┌──────────────┐   command envelope    ┌──────────────┐
//	│ Ironlatch    │ ────────────────────► │ Entry-Control│ ──► Lock
//	│ Core         │ ◄──────────────────── │ Gateway      │ ◄── Lock
//	└──────────────┘    report envelope    └──────────────┘
//	        {prefix}/node/{n}/endpoint/{e}/command
//	        {prefix}/node/{n}/endpoint/{e}/report
//
// The topic prefix comes from gateway.topic_prefix in config.
//
// # Correlation
//
// The device session protocol carries no request identifiers, so replies
// are matched by report command identity: a users-number get waits for a
// users-number report, a capabilities get for a capabilities report, and
// so on. One exchange per report command may be pending at a time;
// reports nobody waits for go to the optional ReportHandler.
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Gateway.TopicPrefix)
//	client, err := gateway.NewClient(mqttClient, topics, 12, 0, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mgr := usercode.NewManager(0, 2, client, store)
package gateway
