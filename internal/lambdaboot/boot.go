// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// A Lambda needs some subset of: AWS config, S3, the DynamoDB run ledger,
// an SSM parameter fetch and startup logging. Each Lambda's bootstrap is a
// short composition of these helpers, sharing one logger.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/logging"
	"github.com/fpang/tooltrace/internal/store"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(logger zerolog.Logger) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	logger.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client. Fatals if bucket is empty.
func InitS3(cfg aws.Config, bucket string, logger zerolog.Logger) *s3.Client {
	if bucket == "" {
		logger.Fatal().Msg("S3 bucket is required (TOOLTRACE_S3_BUCKET)")
	}
	return s3.NewFromConfig(cfg)
}

// InitRunStore creates the DynamoDB run ledger if table is set.
// Returns nil (with a warning) if not configured.
func InitRunStore(cfg aws.Config, table string, logger zerolog.Logger) *store.DynamoRunStore {
	if table == "" {
		logger.Warn().Msg("DynamoDB table not set, run ledger disabled")
		return nil
	}
	return store.NewDynamoRunStore(dynamodb.NewFromConfig(cfg), table)
}

// ParameterAPI is the subset of *ssm.Client used by LoadGeminiKey.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadGeminiKey returns current when it is already set, and otherwise reads
// the decrypted key from the SSM parameter paramName. It logs through the
// logger attached to ctx.
func LoadGeminiKey(ctx context.Context, client ParameterAPI, current, paramName string) (string, error) {
	if current != "" {
		return current, nil
	}
	if paramName == "" {
		return "", fmt.Errorf("no Gemini API key and no SSM parameter configured")
	}
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", paramName)
	}
	zerolog.Ctx(ctx).Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return *result.Parameter.Value, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
