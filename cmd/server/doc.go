// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package main is the ShopSignal recommendation server.

It serves top-k product recommendations over HTTP from the model version
currently in the registry's Production stage, and can retrain on a
schedule.

# Supervisor tree

	shopsignal
	├── training-layer
	│   └── training-service   (only when a schedule or startup run is set)
	├── serving-layer
	│   └── reload-service     (promotion events + registry polling)
	└── api-layer
	    └── http-server

The server starts without a model. Until one is promoted and loaded,
recommendation requests answer ok=false with error "model_not_loaded" and
/health/ready reports 503.

# Configuration

Defaults, then an optional YAML file (CONFIG_PATH), then environment
variables:

	HTTP_PORT=8000
	LOG_LEVEL=info                  # trace, debug, info, warn, error
	LOG_FORMAT=json                 # json or console
	RECOMMEND_BACKEND=als           # als or cooccurrence
	RECOMMEND_TRAIN_SCHEDULE="0 3 * * *"
	TRANSACTIONS_PATH=/data/transactions.parquet
	MODEL_DIR=/data/models
	REGISTRY_DIR=/data/registry
	NATS_URL=nats://nats:4222       # optional; events stay in process otherwise

# Signals

SIGINT and SIGTERM cancel the tree. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT before the process exits.
*/
package main
