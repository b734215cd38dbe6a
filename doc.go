/*
Package pagebuilder keeps the state of an interactive page in sync with the
workflow backend that produced it.

A page is a set of node configurations, each rendered by one widget. The
page can be re-executed: when a widget changes, the current values of every
widget are validated, collected and sent to the backend, which answers with
new configurations for the affected nodes, possibly over several polling
rounds.

# Concept

An App holds everything one page session needs:

  - the page store (node configurations, loading and re-executing nodes),
  - the widget registry (value providers, validators and error sinks),
  - the clean value tracker used for dirty detection,
  - the selection hub forwarding selections between linked widgets,
  - the re-execution coordinator.

Widgets are adapters: they Mount their callbacks under their node id and push
updates through UpdateView. The App never renders anything.

# Usage

	app := pagebuilder.New("session-1",
		pagebuilder.WithBackend(backend),
		pagebuilder.WithAlertSink(alerts),
	)
	app.Load(ctx, domain.PageRequest{Page: page})
	app.Mount("node-1", pagebuilder.Widget{Provider: provider, Validator: validator})
	_ = app.CaptureClean(ctx, "node-1")

	if err := app.TriggerReExecution(ctx, "node-1"); err != nil {
		// already logged and alerted
	}

Sessions are persisted as domain.Snapshot values through the session
package, which serializes access to each session across replicas.
*/
package pagebuilder
