// Package mqtt provides MQTT connectivity for the AMBEO bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained flags
//   - Subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament on the bridge health topic
//
// # Topics
//
// All topics live under a flat "ambeo" tree:
//
//	ambeo/state/{soundbar}       retained soundbar state
//	ambeo/command/{soundbar}     commands in
//	ambeo/ack/{soundbar}         command acknowledgements out
//	ambeo/request/{id}           bridge requests in
//	ambeo/response/{id}          request responses out
//	ambeo/health/{bridge}        retained bridge health, LWT
//	ambeo/discovery/{soundbar}   retained entity list
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithStatusTopic(mqtt.Topics{}.Health(cfg.Bridge.ID)))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
