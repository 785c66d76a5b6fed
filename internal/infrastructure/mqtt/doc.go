// Package mqtt connects the voice bridge to the installation's MQTT bus.
//
// The bridge publishes every change it makes and listens for state the
// field reports on its own:
//
//	voice bridge ──command──▶ broker ──▶ field bridges (KNX, relays, ...)
//	voice bridge ◀──state──── broker ◀── field bridges
//
// # Topics
//
//	graylogic/command/{kind}/{device}    device change, QoS 1, not retained
//	graylogic/command/scene/{scene}      scene run
//	graylogic/core/device/{device}/state retained state after a change
//	graylogic/state/{kind}/{device}      field reports (subscribed)
//	graylogic/system/status              online/offline, Last Will
//
// Device and scene names become topic segments through Segment.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.DeviceState("luce-cucina"), state, true)
package mqtt
