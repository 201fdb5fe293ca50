// Package websocket serves the chat-gateway socket endpoint.
//
// # Overview
//
// Chat gateways that cannot (or should not) speak NATS connect here
// instead. Each gateway holds one long-lived connection, streams inbound
// chat messages as JSON text frames, and receives command responses back
// over the same socket. The source decodes each frame, hands it to the
// dispatcher, and otherwise stays out of the way.
//
// # Quick Start
//
//	src, err := websocket.New(websocket.Deps{
//		Config:          cfg.Sources.WebSocket,
//		Security:        cfg.Security,
//		Submitter:       dispatcher,
//		MetricsRegistry: registry,
//		Logger:          logger,
//	})
//	if err != nil {
//		return err
//	}
//	if err := src.Start(ctx); err != nil {
//		return err
//	}
//	defer src.Stop(10 * time.Second)
//
// # Frame Format
//
// Inbound frames use the shared wire format from the input package:
//
//	{"client": "discord", "channel": "general", "author": "u123",
//	 "content": "!ping", "timestamp": "2026-08-25T10:00:00Z"}
//
// Responses are written back as JSON frames carrying the invocation ID,
// so gateways can correlate asynchronous replies with what they sent:
//
//	{"invocation": "a9b3...", "channel": "general",
//	 "content": "Pong!", "timestamp": 1787652000123}
//
// # Authentication
//
// The upgrade request is gated by the auth section of the source config:
// none, bearer token, or basic credentials. Expected values are read from
// the environment variables named there, so config files never carry
// secrets and an unset variable fails closed.
//
// # Keepalive
//
// The source pings each connection on PingInterval and expects a pong
// within PongWait. Gateways that stop answering are evicted; gorilla
// clients answer pings automatically as long as they keep reading.
//
// # Backpressure
//
// The source never buffers. Frames a full dispatcher refuses are counted
// and dropped; the connection itself is never torn down over a rejected
// submission.
package websocket
