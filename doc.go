// Package portalflow is a small layer on top of godbus that speaks the
// desktop portal request/response protocol: it issues a capability-granting
// method call, deterministically derives and arms the object path that will
// carry the call's asynchronous Response signal, reconciles the predicted
// path against the path the portal reports in the call reply, and resolves
// the typed outcome exactly once.
//
// Conn hosts the correlation engine and exposes three call shapes:
// Conn.Request for methods that complete through a Response signal,
// Conn.RequestSession for session-creating methods (remote desktop, screen
// cast), and Conn.Call for plain methods that complete in their own reply.
// A minimal setup therefore involves filling Config, creating a Conn with
// TryNew, and calling a typed wrapper package such as remotedesktop.
//
// # Correlation protocol
//
// The portal answers a request call immediately with a request object path
// and delivers the actual outcome later as a Response signal on that path.
// The engine subscribes to the predicted path before sending the call, so
// no response can be emitted unobserved, and retargets the subscription
// when the portal disambiguates the path with a suffix. Each pending
// request privately owns its subscription; there is no central registry,
// and dropping a request releases its match rule.
//
// # Observability
//
// RequestHooks provide OnRequestStart, OnRequestDone, and OnRequestError
// callbacks for logging, metrics, and alerting around the request
// lifecycle; LoggingHooks and MetricsHooks cover the common cases, and the
// engine records OpenTelemetry spans around every request and wait.
// Prometheus collectors are registered when Config.MetricsEnabled is set.
//
// # Testing
//
// Package portaltest provides an in-memory broker double that assigns
// request paths, delivers scripted responses, and tracks match-rule
// registrations, so application code and typed wrappers can be exercised
// without a desktop session.
package portalflow
