/*
Package observability turns engine lifecycle events into metrics and logs.

Metrics exposes prometheus collectors as domain.LifecycleHooks; LogHooks does the
same for structured logs; Merge fans a single event out to several hook sets.
*/
package observability
