/*
Package session serializes turns per session and mediates session store access.

Each inbound turn is independent from the transport's point of view, but two
turns of the same session must never interleave their load, compute and save
steps. The Manager enforces that with a ref-counted in-process mutex per
session ID, optionally backed by a distributed lock shared between replicas.
*/
package session
