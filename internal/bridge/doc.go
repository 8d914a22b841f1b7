// Package bridge exposes the hanger gateway over MQTT.
//
// Device states are published retained on <prefix>/state/<id> whenever
// the gateway reports a change. Payloads on <prefix>/command/<id> (raise,
// lower, stop or their aliases) are executed one at a time and answered on
// <prefix>/ack/<id>.
package bridge
