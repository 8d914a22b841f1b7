// Package mqtt is a thin paho.mqtt.golang wrapper for the hanger bridge.
//
// Connect registers a retained last will of "offline" on
// <prefix>/bridge/status and publishes "online" after every (re)connect.
// Subscriptions are tracked and restored when paho reconnects. Handlers
// are wrapped with panic recovery and their errors are logged.
//
//	c, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	err = c.Subscribe(c.Topics().AllCommands(), func(topic string, payload []byte) error {
//	    ...
//	})
package mqtt
