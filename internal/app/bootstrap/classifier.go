package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/medspa-sms-triage/internal/classifier"
	appconfig "github.com/wolfman30/medspa-sms-triage/internal/config"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// Classifier providers accepted in CLASSIFIER_PROVIDER.
const (
	ProviderKeyword       = "keyword"
	ProviderBedrock       = "bedrock"
	ProviderGemini        = "gemini"
	ProviderBedrockGemini = "bedrock-gemini"
)

// BuildClassifier returns the primary classifier. The keyword classifier is always the
// pipeline's fallback, so "keyword" here means no model at all.
func BuildClassifier(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (triage.Classifier, error) {
	var client classifier.LLMClient
	switch cfg.ClassifierProvider {
	case "", ProviderKeyword:
		logger.Info("using keyword classifier")
		return classifier.NewKeywordClassifier(), nil
	case ProviderBedrock:
		bedrock, err := bedrockClient(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		client = bedrock
	case ProviderGemini:
		gemini, err := classifier.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		client = gemini
	case ProviderBedrockGemini:
		primary, err := bedrockClient(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		gemini, err := classifier.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
			client = classifier.NewFallbackLLMClient(primary, nil, logger)
		} else {
			client = classifier.NewFallbackLLMClient(primary, gemini, logger)
		}
	default:
		return nil, fmt.Errorf("bootstrap: unknown classifier provider %q", cfg.ClassifierProvider)
	}
	logger.Info("using llm classifier", "provider", cfg.ClassifierProvider, "model", cfg.BedrockModelID)
	return classifier.NewLLMClassifier(client, cfg.BedrockModelID, classifier.WithTimeout(cfg.ClassifierTimeout)), nil
}

func bedrockClient(cfg *appconfig.Config, awsCfg *aws.Config) (classifier.LLMClient, error) {
	if cfg.BedrockModelID == "" {
		return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock classifier")
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config is required for the bedrock classifier")
	}
	return classifier.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg)), nil
}
