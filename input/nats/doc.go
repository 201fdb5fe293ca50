// Package nats provides the NATS invocation source for the cmdtree daemon.
//
// # Overview
//
// The source subscribes to a subject carrying inbound chat messages,
// decodes each payload into an invocation, and submits it to the
// dispatcher. It implements the service.Service lifecycle so the daemon
// manages it alongside the dispatcher and the other sources.
//
// # Quick Start
//
// Create a source over an existing client and dispatcher:
//
//	src, err := nats.New(nats.Deps{
//	    Config:    cfg.Sources.NATS,
//	    Client:    client,
//	    Submitter: dispatcher,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := src.Start(ctx); err != nil {
//	    return err
//	}
//	defer src.Stop(5 * time.Second)
//
// # Message Format
//
// Payloads are the shared wire shape from the input package:
//
//	{"client": "discord", "channel": "general", "author": "u1",
//	 "content": "!ping", "timestamp": "2026-08-25T10:00:00Z"}
//
// Client and content are required. Payloads that fail to decode are
// counted and dropped; one malformed producer cannot stall the subject.
//
// # Queue Groups
//
// With sources.nats.queue set, every daemon instance joins the same
// queue group and NATS delivers each message to exactly one instance.
// Leave the queue empty for single-instance deployments.
//
// # Replies
//
// When a message carries a reply subject (NATS request/reply), the
// invocation gets a reply writer that publishes command output back to
// that subject. Plain publishes yield fire-and-forget invocations.
//
// # Backpressure
//
// The source never buffers. The dispatcher's bounded worker queue is the
// backpressure boundary: a full queue or a rate-limited client rejects
// the submission and the source drops the message, counting the reason.
//
// # Health
//
// The source reports unhealthy until its subscription is established and
// whenever the underlying NATS connection degrades.
package nats
