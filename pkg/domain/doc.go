/*
Package domain holds the core types of the page host: the page document and
its node configurations, widget update events, re-execution results, alerts,
persisted snapshots and the error taxonomy shared by every other package.

The types here carry no behaviour beyond small accessors; orchestration lives
in the store, registry, dirty and reexec packages.
*/
package domain
