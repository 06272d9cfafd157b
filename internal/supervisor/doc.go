// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package supervisor runs the long-lived parts of the recommendation server
under a suture v4 supervisor tree.

# Layers

	shopsignal
	├── training-layer
	│   └── TrainingService (interval or cron retraining)
	├── serving-layer
	│   └── ReloadService (promotion events + registry polling)
	└── api-layer
	    └── HTTPServerService

Each layer is its own supervisor, so a service that keeps failing backs
off inside its layer. The API keeps serving whatever model the handle
already holds while training or reloading restarts.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddTrainingService(trainingSvc)
	tree.AddServingService(reloadSvc)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Supervisor events (start, failure, backoff) are logged through sutureslog
into the slog bridge of the logging package.
*/
package supervisor
