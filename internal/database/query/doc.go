// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package query builds parameterized WHERE clauses for the DuckDB queries
// in the database package. Values always travel as placeholder arguments;
// only column names are spliced into the SQL text.
package query
