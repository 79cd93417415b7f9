/*
Package ports defines the driven ports (interfaces) of amrviz.

These interfaces decouple the use cases from external implementations, allowing
the service to work with various solver backends, storage layouts and session stores.

# Key Interfaces

  - Solver: runs the solve-and-refine loop and writes one interchange file per iteration.
  - ArtifactStore: the shared directory holding interchange files, namespaced per session.
  - SessionStore: persists the Session record (memory, files or Redis).
  - DistributedLocker: coordinates session access across service replicas.
*/
package ports
