package config

import (
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Object storage coordinates for the shared configuration document.
// When CATWALL_CONFIG_BUCKET is set the bot loads its configuration
// from object storage instead of the local filesystem, so several
// deployments can share one document.
const (
	EnvBucket   = "CATWALL_CONFIG_BUCKET"
	EnvKey      = "CATWALL_CONFIG_KEY"
	EnvEndpoint = "CATWALL_CONFIG_ENDPOINT"
	EnvRegion   = "CATWALL_CONFIG_REGION"
)

// StoreConfigured reports whether an object-storage config source is set
// up in the environment.
func StoreConfigured() bool {
	return os.Getenv(EnvBucket) != ""
}

// LoadFromStore fetches and parses the configuration object. Credentials
// come from the standard AWS environment variables.
func LoadFromStore() (*Config, error) {
	bucket := os.Getenv(EnvBucket)
	key := os.Getenv(EnvKey)
	if key == "" {
		key = "configuration.yml"
	}

	awsCfg := aws.NewConfig().WithS3ForcePathStyle(true)
	if endpoint := os.Getenv(EnvEndpoint); endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint)
	}
	if region := os.Getenv(EnvRegion); region != "" {
		awsCfg = awsCfg.WithRegion(region)
	} else {
		awsCfg = awsCfg.WithRegion("us-east-1")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating storage session: %w", err)
	}

	obj, err := s3.New(sess).GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching config object %s/%s: %w", bucket, key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("reading config object: %w", err)
	}

	return parse(data)
}
