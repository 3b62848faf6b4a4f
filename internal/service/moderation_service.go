package service

import (
	"context"

	"github.com/rs/zerolog/log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	cfg "github.com/BazaarDev/bazaar_api/internal/config"
)

// ModerationService screens uploaded product images using AWS Rekognition
// moderation labels. It is a best-effort side effect: a screening failure is
// logged and never blocks the upload that triggered it.
type ModerationService struct {
	client        *rekognition.Client
	minConfidence float32
}

// NewModerationService creates a new moderation service.
func NewModerationService(apiCfg *cfg.Config) *ModerationService {
	// Credentials are loaded from env automatically by LoadDefaultConfig
	// if AWS_ACCESS_KEY_ID etc are set.
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(apiCfg.AWS.ModerationRegion),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load AWS SDK config")
	}

	return &ModerationService{
		client:        rekognition.NewFromConfig(awsCfg),
		minConfidence: 80,
	}
}

// ScreenImage runs moderation over raw image bytes and returns the offending
// label names, if any. Errors are logged and reported as "no findings" so
// callers never fail on screening problems.
func (s *ModerationService) ScreenImage(ctx context.Context, productID string, data []byte) []string {
	if s == nil || s.client == nil || len(data) == 0 {
		return nil
	}

	out, err := s.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: data},
		MinConfidence: &s.minConfidence,
	})
	if err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("image moderation failed")
		return nil
	}

	var labels []string
	for _, l := range out.ModerationLabels {
		if l.Name != nil {
			labels = append(labels, *l.Name)
		}
	}
	if len(labels) > 0 {
		log.Warn().
			Str("product_id", productID).
			Strs("labels", labels).
			Msg("product image flagged by moderation")
	}
	return labels
}
