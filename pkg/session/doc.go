/*
Package session serializes access to solve sessions.

Every request that clears, writes or reads the files of a session runs under
that session's lock, so two solves sharing a session never interleave their
writes. A DistributedLocker extends the guarantee to replicas that share the
storage volume.
*/
package session
