// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package storage persists trained recommenders and tracks which version
// is live.
//
// Two pieces cooperate:
//
//   - Store writes immutable model artifacts to disk. Each version is one
//     file holding metadata plus a gzip-compressed gob payload guarded by
//     a SHA-256 checksum:
//
//     filename: {model_name}_v{version}.gob.gz
//
//   - Registry is a BadgerDB index over those versions. It records the
//     stage of every version (None, Staging, Production, Archived) and
//     evaluation metrics, and answers "which version is in Production".
//
// Retraining never mutates an artifact: it saves a new version and, once
// that succeeds, optionally promotes it. A failed training run therefore
// cannot disturb the version being served.
//
// # Usage Example
//
//	store, _ := storage.NewStore("/data/models")
//	reg, _ := storage.OpenRegistry("/data/registry")
//
//	art, _ := storage.ArtifactFor(recommender)
//	v := store.NextVersion("recommender_als_model")
//	meta, _ := store.Save(ctx, "recommender_als_model", v, art, storage.ModelMetadata{})
//	_ = reg.Register(ctx, storage.VersionFromMetadata(meta))
//	_, _ = reg.Promote(ctx, "recommender_als_model", v, storage.StageProduction, true)
package storage
