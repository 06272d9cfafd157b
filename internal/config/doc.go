// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package config loads ShopSignal configuration with Koanf v2.
//
// Sources are layered from lowest to highest priority: struct defaults, an
// optional YAML file (CONFIG_PATH, then ./config.yaml and
// /etc/shopsignal/config.yaml), and a fixed set of environment variables.
// Unlisted environment variables are ignored.
//
// Common environment variables:
//
//	HTTP_PORT                 server.port (default 8000)
//	LOG_LEVEL, LOG_FORMAT     logging.level, logging.format
//	RECOMMEND_BACKEND         recommend.backend: als | cooccurrence
//	RECOMMEND_MODEL_NAME      recommend.model_name (default recommender_als_model)
//	RECOMMEND_ALS_FACTORS     recommend.als.factors (default 64)
//	RECOMMEND_TRAIN_SCHEDULE  recommend.train_schedule, 5-field cron
//	TRANSACTIONS_PATH         data.transactions_path (CSV or Parquet)
//	MODEL_DIR, REGISTRY_DIR   storage.model_dir, storage.registry_dir
//	NATS_URL, NATS_EMBEDDED   events.nats_url, events.embedded_nats
//
// Example YAML:
//
//	recommend:
//	  backend: als
//	  als:
//	    factors: 32
//	    iterations: 15
//	  train_schedule: "0 3 * * *"
//	data:
//	  transactions_path: /data/transactions.parquet
package config
