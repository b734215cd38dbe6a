/*
Package reexec orchestrates page re-execution.

A round validates every mounted widget, collects their values, submits them
to the backend and polls until the backend hands back the new configuration
of the re-executed nodes, which is merged into the page store. Failures
that prevent a consistent value set are reported through the alert sink and
abort the round; nothing here panics or leaves the re-executing set dangling.

Every round remembers the page generation it started on. A result arriving
after the page was replaced is discarded with domain.ErrStalePage.
*/
package reexec
