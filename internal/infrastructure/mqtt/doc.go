// Package mqtt provides the MQTT client for Gray Media Core.
//
// Gray Media uses the broker to share renderer identification with the rest
// of the installation:
//
//	graymedia/event/renderer/identified   new or changed sightings
//	graymedia/state/renderer/policy       retained identification policy
//	graymedia/config/renderer             inbound policy updates
//	graymedia/system/status               retained online/offline (LWT)
//
// The client reconnects with exponential backoff, restores subscriptions
// after a reconnect and recovers from panicking handlers.
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside a trusted LAN
//   - Anything that can publish to graymedia/config/renderer can change the
//     forced-IP overrides; restrict it with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.RendererConfig(), 1,
//	    func(topic string, payload []byte) error {
//	        return watcher.Handle(payload)
//	    })
package mqtt
