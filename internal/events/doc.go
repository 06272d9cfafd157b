// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package events carries model lifecycle notifications over Watermill.
//
// The training side publishes ModelPromoted after a version reaches
// Production; serving processes subscribe and reload. Three transports
// are available through Open:
//
//   - in-process Go channels (default, single binary)
//   - an external NATS server (events.nats_url)
//   - an embedded NATS server started by this process (events.embedded_nats)
//
// Payloads are JSON. Delivery is at-most-once: a subscriber that is down
// misses the event and relies on registry polling to catch up.
package events
