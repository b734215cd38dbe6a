/*
Package store owns the page document of a session.

It applies full replacements and path addressed partial updates, keeps the
set of widgets that are still mounting (the mount barrier) and the set of
nodes that are being re-executed. Every mutation goes through the Store so
updates to a given node are applied in the order they were issued.

A page replacement bumps the generation counter. Operations that started on
an older generation (mount waits, re-execution rounds) observe the change and
stop instead of writing into the new page.
*/
package store
