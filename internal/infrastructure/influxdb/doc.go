// Package influxdb records time-series telemetry for Ironlatch Core:
// user-code synchronization runs and code slot transition events.
//
// SyncRecorder adapts the client to the usercode recorder contract,
// binding each lock's events to its node id:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mgr.SetRecorder(influxdb.NewSyncRecorder(client, lockCfg.NodeID))
//
// Writes are batched and non-blocking; failures surface only through
// the SetOnError callback. Telemetry is optional, and Connect returns
// ErrDisabled when it is switched off in config.
package influxdb
