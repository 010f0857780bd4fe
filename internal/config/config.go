package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cstore-agent/internal/integrations/paramstore"
)

type SkillConfig struct {
	Region                    string
	ProductServiceURL         string
	OrderServiceURL           string
	RecommendationsServiceURL string
	LocationServiceURL        string
	PinpointAppID             string
	CognitoDomain             string
	PlaceIndexName            string
	AssumeRoleARN             string
	MerchantID                string
	SandboxCustomerEmail      string
	ForcePayPermissions       bool
	DisableSendEmail          bool
	WebURL                    string
	OrderLedgerTable          string
	StoreSearchText           string
	DemoStoreOverride         bool
	DemoStoreAddress          string
	DemoStoreMiles            float64
}

type ResourcesConfig struct {
	Region         string
	ResourceBucket string
	GeofenceKey    string
	MapStyle       string
}

func LoadSkillConfig() (SkillConfig, error) {
	cfg := SkillConfig{
		Region:                    os.Getenv("AWS_REGION"),
		ProductServiceURL:         os.Getenv("PRODUCT_SERVICE_URL"),
		OrderServiceURL:           os.Getenv("ORDER_SERVICE_URL"),
		RecommendationsServiceURL: os.Getenv("RECOMMENDATIONS_SERVICE_URL"),
		LocationServiceURL:        os.Getenv("LOCATION_SERVICE_URL"),
		PinpointAppID:             os.Getenv("PINPOINT_APP_ID"),
		CognitoDomain:             strings.TrimRight(os.Getenv("COGNITO_DOMAIN"), "/"),
		PlaceIndexName:            os.Getenv("LOCATION_PLACE_INDEX_NAME"),
		AssumeRoleARN:             strings.TrimSpace(os.Getenv("ASSUME_ROLE_ARN")),
		MerchantID:                strings.TrimSpace(os.Getenv("AMAZON_PAY_MERCHANT_ID")),
		SandboxCustomerEmail:      strings.TrimSpace(os.Getenv("SANDBOX_CUSTOMER_EMAIL")),
		ForcePayPermissions:       getenvBoolDefault("FORCE_ASK_PAY_PERMISSIONS", false),
		DisableSendEmail:          getenvBoolDefault("DISABLE_SEND_EMAIL", false),
		WebURL:                    os.Getenv("WebURL"),
		OrderLedgerTable:          strings.TrimSpace(os.Getenv("ORDER_LEDGER_TABLE")),
		StoreSearchText:           getenvDefault("STORE_SEARCH_TEXT", "Exxon"),
		DemoStoreOverride:         getenvBoolDefault("DEMO_STORE_OVERRIDE", true),
		DemoStoreAddress:          getenvDefault("DEMO_STORE_ADDRESS", "640 Elk St."),
		DemoStoreMiles:            getenvFloatDefault("DEMO_STORE_MILES", 3),
	}

	required := []struct{ key, val string }{
		{"PRODUCT_SERVICE_URL", cfg.ProductServiceURL},
		{"ORDER_SERVICE_URL", cfg.OrderServiceURL},
		{"RECOMMENDATIONS_SERVICE_URL", cfg.RecommendationsServiceURL},
		{"LOCATION_SERVICE_URL", cfg.LocationServiceURL},
		{"LOCATION_PLACE_INDEX_NAME", cfg.PlaceIndexName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return SkillConfig{}, fmt.Errorf("%s is required", r.key)
		}
	}
	if !cfg.DisableSendEmail && cfg.PinpointAppID == "" {
		return SkillConfig{}, fmt.Errorf("PINPOINT_APP_ID is required unless DISABLE_SEND_EMAIL is set")
	}

	return cfg, nil
}

// ResolveSecrets replaces "ssm:" references in the secret-bearing fields
// with the parameter values they name.
func (c *SkillConfig) ResolveSecrets(ctx context.Context, r paramstore.Resolver) error {
	for name, field := range map[string]*string{
		"AMAZON_PAY_MERCHANT_ID": &c.MerchantID,
		"SANDBOX_CUSTOMER_EMAIL": &c.SandboxCustomerEmail,
	} {
		if !paramstore.IsRef(*field) {
			continue
		}
		v, err := r.Resolve(ctx, *field)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", name, err)
		}
		*field = strings.TrimSpace(v)
	}
	return nil
}

func LoadResourcesConfig() (ResourcesConfig, error) {
	cfg := ResourcesConfig{
		Region:         os.Getenv("AWS_REGION"),
		ResourceBucket: os.Getenv("RESOURCE_BUCKET"),
		GeofenceKey:    getenvDefault("GEOFENCE_KEY", "waypoint/store_geofence.json"),
		MapStyle:       getenvDefault("MAP_STYLE", "VectorEsriNavigation"),
	}
	if cfg.ResourceBucket == "" {
		return ResourcesConfig{}, fmt.Errorf("RESOURCE_BUCKET is required")
	}
	return cfg, nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvBoolDefault(key string, val bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return val
	case "1", "yes", "true":
		return true
	default:
		return false
	}
}

func getenvFloatDefault(key string, val float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return f
}
