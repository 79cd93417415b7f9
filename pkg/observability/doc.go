/*
Package observability exposes the Prometheus metrics of amrviz.

Metrics live in a dedicated registry so several servers (and tests) can run
in one process. The pipeline reports per-iteration figures through the
Observer interface; the service reports request outcomes.
*/
package observability
