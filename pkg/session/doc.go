/*
Package session implements page session management and persistence
orchestration.

A Manager keeps the live pagebuilder.App of every open session in memory and
persists its snapshot through a ports.SnapshotStore. Access to a session is
serialized per id, across replicas as well when a distributed locker is
configured.
*/
package session
