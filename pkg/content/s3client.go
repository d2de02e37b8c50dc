package content

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ClientOptions configures NewS3Client.
type S3ClientOptions struct {
	Region string

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string

	// PathStyle addresses buckets as path segments instead of subdomains.
	PathStyle bool

	// Anonymous skips request signing for public buckets.
	Anonymous bool
}

// NewS3Client builds an S3 client. Credentials come from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN unless Anonymous is set.
func NewS3Client(opts S3ClientOptions) *s3.Client {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if !opts.Anonymous {
		creds = aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials))
	}

	return s3.New(s3.Options{
		Region:       region,
		Credentials:  creds,
		UsePathStyle: opts.PathStyle,
		BaseEndpoint: endpoint(opts.Endpoint),
	})
}

func envCredentials(context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}, nil
}

func endpoint(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
