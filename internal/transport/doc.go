// Package transport serves the websocket endpoint clients transfer media
// over. Each socket gets a read pump that decodes frames and hands them to
// the transfer manager, and a write pump that drains a buffered send queue.
//
// Text frames are JSON envelopes of the form {"event": "...", "payload": ...}.
// Binary frames start with a one-byte opcode: 0x01 carries an upload chunk
// from the client, 0x02 a download chunk to the client.
package transport
