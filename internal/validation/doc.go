// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built validator and readable error messages.
//
// Field names in messages follow the struct's json tag (or koanf tag for
// configuration), so a request error reads "customer_id is required" and a
// configuration error reads "recommend.als.factors must be at least 1".
//
// Beyond the built-in tags, the validator registers:
//
//	model_name  letters, digits, '.', '_' and '-', starting with a letter or digit
//
// Example:
//
//	type Request struct {
//	    CustomerID string `json:"customer_id" validate:"required,max=256"`
//	    K          int    `json:"k" validate:"gte=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // verr.Error(), verr.Details()
//	}
package validation
