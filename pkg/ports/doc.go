/*
Package ports defines the driven ports (interfaces) of the page host.

These interfaces decouple the page session logic from external implementations,
allowing it to work with various storage backends, page sources and backends.

# Key Interfaces

  - SnapshotStore: Persists and restores page session snapshots.
  - PageLoader: Loads page documents (e.g., from a file or memory).
  - ReexecutionBackend: Starts re-executions and polls their progress.
  - AlertSink: Receives user visible alerts.
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
