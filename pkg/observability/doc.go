/*
Package observability turns the lifecycle hooks of a page session into
Prometheus metrics and structured log lines.

	metrics := observability.NewMetrics()
	metrics.MustRegister(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	app := pagebuilder.New(id, pagebuilder.WithLifecycleHooks(hooks))
*/
package observability
