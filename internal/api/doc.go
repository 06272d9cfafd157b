// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package api exposes the recommender over HTTP using the chi router.

Endpoints:

	POST /api/v1/recommend              {customer_id, k} -> serving response
	GET  /api/v1/recommend/{customerID} ?k= query form of the above
	POST /api/v1/recommend/batch        {rows: [{customer_id, k}]}
	GET  /api/v1/model                  served model metadata
	POST /api/v1/model/reload           load Production (or ?version=N)
	GET  /api/v1/stats/latency          per-route latency percentiles
	GET  /health, /health/live, /health/ready
	GET  /metrics                       Prometheus exposition

The two single-customer recommend endpoints answer in the serving shape
{customer_id, rec_list, ok, error} rather than the APIResponse envelope.
A missing model is reported in-band (ok=false, error "model_not_loaded")
with status 200; only malformed input yields 400. All other endpoints use
the APIResponse envelope.
*/
package api
