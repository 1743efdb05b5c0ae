// Package audit dispatches security events (logins, rotations, revocations)
// to a pluggable sink without blocking the request path.
//
// # Components
//
//   - [Sink] receives events: [ChannelSink], [JSONWriterSink], [SlogSink] or [NoOpSink].
//   - [Dispatcher] is the buffered relay with drop-if-full or block-if-full delivery.
//   - [Event] is the structured record.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The engine does that.
//   - Import authcore or any sibling internal package.
package audit
