package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslocation "github.com/aws/aws-sdk-go-v2/service/location"
	awspinpoint "github.com/aws/aws-sdk-go-v2/service/pinpoint"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/joho/godotenv"

	"cstore-agent/handler"
	appconfig "cstore-agent/internal/config"
	"cstore-agent/internal/integrations/geo"
	"cstore-agent/internal/integrations/identity"
	"cstore-agent/internal/integrations/messaging"
	"cstore-agent/internal/integrations/paramstore"
	"cstore-agent/internal/integrations/retail"
	"cstore-agent/internal/repository"
	"cstore-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.LoadSkillConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// Location and Pinpoint may live in another account.
	crossCfg := awsCfg.Copy()
	if cfg.AssumeRoleARN != "" {
		slog.Info("assuming role for location and messaging", "roleArn", cfg.AssumeRoleARN)
		crossCfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.AssumeRoleARN))
	}

	// ---- Secrets ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	if err := cfg.ResolveSecrets(ctx, params); err != nil {
		slog.Error("failed to resolve secrets", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	retailClient, err := retail.NewClient(retail.Endpoints{
		Products:        cfg.ProductServiceURL,
		Orders:          cfg.OrderServiceURL,
		Recommendations: cfg.RecommendationsServiceURL,
		Location:        cfg.LocationServiceURL,
	})
	if err != nil {
		slog.Error("failed to create retail client", "err", err)
		os.Exit(1)
	}

	places, err := geo.NewPlaceFinder(awslocation.NewFromConfig(crossCfg), cfg.PlaceIndexName)
	if err != nil {
		slog.Error("failed to create place finder", "err", err)
		os.Exit(1)
	}

	deps := usecase.Deps{
		Catalog:  retailClient,
		Orders:   retailClient,
		Route:    retailClient,
		Places:   places,
		Identity: identity.NewClient(cfg.CognitoDomain),
	}

	if cfg.DisableSendEmail {
		slog.Info("order confirmation email disabled")
	} else {
		sender, err := messaging.NewEmailSender(awspinpoint.NewFromConfig(crossCfg), cfg.PinpointAppID)
		if err != nil {
			slog.Error("failed to create email sender", "err", err)
			os.Exit(1)
		}
		deps.Email = sender
	}

	if cfg.OrderLedgerTable != "" {
		ledger, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.OrderLedgerTable)
		if err != nil {
			slog.Error("failed to create order ledger", "err", err)
			os.Exit(1)
		}
		deps.Ledger = ledger
	}

	// ---- Handler ----
	skill, err := usecase.NewSkill(deps, usecase.Settings{
		MerchantID:           cfg.MerchantID,
		SandboxCustomerEmail: cfg.SandboxCustomerEmail,
		ForcePayPermissions:  cfg.ForcePayPermissions,
		WebURL:               cfg.WebURL,
		StoreName:            cfg.StoreSearchText,
		DemoStoreOverride:    cfg.DemoStoreOverride,
		DemoStoreAddress:     cfg.DemoStoreAddress,
		DemoStoreMiles:       cfg.DemoStoreMiles,
	})
	if err != nil {
		slog.Error("failed to create skill", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewSkillHandler(skill.Dispatcher())
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
