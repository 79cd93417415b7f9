/*
Package domain contains the core domain models shared by every layer of amrviz.

It defines the solve parameters accepted from users, the results returned to them,
and the session record that ties a user to the interchange files produced on their
behalf. The package is kept free of I/O so that adapters (HTTP, MCP, CLI) and
backends (native, process) agree on a single vocabulary.

# Key Entities

  - SolveParams: problem shape, initial mesh coarseness, iteration count and marking method.
  - SolveResult: the filenames written by one solve request, one per iteration.
  - Session: the durable record of the latest solve for a session identifier.
*/
package domain
