// Package httpapi exposes a routing client's operational state over HTTP.
//
// The handler is meant to back health probes, dashboards, and runbooks:
// Kubernetes-style liveness at /health, database connectivity at
// /health/db, and replication introspection under /api/db. It is not the
// application's data API; applications build their own handlers on top of
// the client and use WriteError for consistent error mapping.
//
// # Usage
//
//	mux := httpapi.New(client,
//	    httpapi.WithLogger(logger),
//	    httpapi.WithMetricsRegistry(collector.Registry()),
//	)
//	http.ListenAndServe(":8080", mux)
//
// Applications serving their own routes on the same listener use Attach
// to register the operational endpoints on an existing chi router instead
// of mounting a second handler.
//
// # Error Mapping
//
// WriteError translates classifier verdicts into status codes: transient
// errors produce 503 with a Retry-After header, permanent errors produce
// 500. Application handlers use it at their boundary:
//
//	result, err := tandem.Read(ctx, client, true, fetchBalance)
//	if err != nil {
//	    httpapi.WriteError(w, err)
//	    return
//	}
package httpapi
