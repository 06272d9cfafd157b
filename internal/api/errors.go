// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

// Error codes used in APIError.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeModelNotLoaded   = "MODEL_NOT_LOADED"
	CodeNoProduction     = "NO_PRODUCTION_MODEL"
	CodeReloadRejected   = "RELOAD_REJECTED"
	CodeReloadFailed     = "RELOAD_FAILED"
	CodePredictionFailed = "PREDICTION_FAILED"
	CodeNotReady         = "NOT_READY"
	CodeNotFound         = "NOT_FOUND"
)
