/*
Package domain contains the core domain models of the ussdflow engine.

It defines the session record carried across stateless menu turns, the read-only
view handed to guards, the reply returned to the transport and the narrow wallet
request/response contract. This package is kept pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Session: The mutable record of one ongoing menu session (state, language, input, data).
  - View: A read-only accessor over a Session, the only thing guards may look at.
  - Reply: The rendered body text plus the continue/terminate flag for the transport.
  - WalletRequest / WalletResponse: The custodial backend contract consumed by flows.
*/
package domain
