package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awslocation "github.com/aws/aws-sdk-go-v2/service/location"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"cstore-agent/handler"
	appconfig "cstore-agent/internal/config"
	"cstore-agent/internal/provisioning"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg, err := appconfig.LoadResourcesConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	waypoint, err := provisioning.New(
		awslocation.NewFromConfig(awsCfg),
		awss3.NewFromConfig(awsCfg),
		cfg.ResourceBucket,
		cfg.GeofenceKey,
		cfg.MapStyle,
	)
	if err != nil {
		slog.Error("failed to create provisioner", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewResourcesHandler(waypoint)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(cfn.LambdaWrap(h.Handle))
}
