package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/modelgate/internal/api"
	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/internal/version"
)

func serveCmd() *cli.Command {
	var (
		addr          string
		readTimeout   time.Duration
		allowModelAPI bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the model descriptor and layout negotiation API",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "allow-model-api",
				Usage:       "allow clients to load and unload models",
				Destination: &allowModelAPI,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(cmd, cfg, &addr, &allowModelAPI)
			ctx, sl := setupLogging(ctx)
			log := logger.FromContext(ctx)

			opts, err := loaderOptions(sl)
			if err != nil {
				return err
			}
			registry := api.NewRegistry(log.With("component", "registry"), opts...)
			defer registry.Close()
			if err := preloadModels(registry, cfg.Models); err != nil {
				return err
			}
			if registry.Len() == 0 && !allowModelAPI {
				return fmt.Errorf("serve: no models loaded; set --model, --models-path or enable --allow-model-api")
			}

			server := api.NewServer(registry, api.WithModelManagement(allowModelAPI))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "models", registry.Names(), "version", version.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// preloadModels registers --model, every model in --models-path and the
// models listed in the config file.
func preloadModels(registry *api.Registry, configured []ModelConfig) error {
	if modelPath != "" {
		if err := registry.Load(api.ModelName(modelPath), modelPath, functionName); err != nil {
			return fmt.Errorf("serve: load %s: %w", modelPath, err)
		}
	}
	if modelsPath != "" {
		if _, err := registry.LoadDir(modelsPath, functionName); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	for _, mc := range configured {
		fn := mc.Function
		if fn == "" {
			fn = functionName
		}
		name := mc.Name
		if name == "" {
			name = api.ModelName(mc.Path)
		}
		if err := registry.Load(name, mc.Path, fn); err != nil {
			return fmt.Errorf("serve: load %s: %w", mc.Path, err)
		}
	}
	return nil
}
