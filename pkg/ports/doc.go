/*
Package ports defines the driven ports (interfaces) of the ussdflow engine.

These interfaces decouple the session state machine from external
implementations, allowing it to work with various storage backends, lock
services, wallet backends and notification channels.

# Key Interfaces

  - SessionStore: Persists session records keyed by session ID with a TTL.
  - DistributedLocker: Serializes turns of one session across replicas.
  - Wallet: The custodial wallet backend, consumed through a narrow request/response contract.
  - Notifier: Delivers out-of-band SMS texts rendered by the engine.
*/
package ports
