// Package protocol implements the hanger gateway wire format.
//
// The gateway speaks a length-prefixed binary framing over plain TCP, with
// JSON documents inside payload frames.
//
// # Frame Format
//
//	[0-1]  tag     frame type (big-endian)
//	[2-3]  length  body length in bytes (big-endian)
//	[4+]   body    length bytes
//
// Tags:
//   - 0x0100: handshake (both directions)
//   - 0x0200: handshake ack (client to gateway only)
//   - 0x0300: heartbeat
//   - 0x0400: payload
//
// # Payload Bodies
//
// Gateway payloads start with a 2-byte sub-header followed by a UTF-8 method
// name and a JSON document, e.g. "onHomeInfo{...}". A first sub-header byte
// of 0x04 marks the answer to a command (operation feedback).
//
// Client commands carry a 2-byte sequence number and a marker byte (0x1F for
// device operations, 0x20 otherwise) ahead of the method name.
//
// # Resynchronization
//
// The stream decoder drops bytes that do not start a recognized inbound tag
// one at a time until framing is recovered. Decoding is chunk-invariant:
//
//	dec := protocol.NewDecoder()
//	dec.Feed(chunk)
//	for {
//	    frame, ok := dec.Next()
//	    if !ok {
//	        break
//	    }
//	    msg, err := protocol.DecodeMessage(frame)
//	    ...
//	}
//
// # Construction
//
//	var seq protocol.Sequence
//	hexFrame, err := protocol.EncodeCommand(seq.Next(), protocol.MethodLogin, req, false)
//
// All functions are stateless except Decoder (owned by a single reader) and
// Sequence (atomic).
package protocol
