// Package network runs the zerocom protocol over live connections.
//
// Connection turns a byte stream into an exact-read source with per-operation timeouts.
// Server accepts connections and drives each one through the Handler lifecycle:
// OnConnect, then ReadPacket/OnPacket until a disconnect, then OnClose. Client performs
// the handshake gate and ping round trips from the connecting side.
//
// Every session ends with exactly one *DisconnectError. Failures inside the serve loop are
// wrapped as *ReadError or *ProcessingError and handed to Handler.OnError, which must turn
// them into a disconnect; there is no resume path.
package network
