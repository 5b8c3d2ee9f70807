package rekognition

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
)

const (
	errCodeAccessDenied        = "AccessDeniedException"
	errCodeInvalidParameter    = "InvalidParameterException"
	errCodeInvalidImageFormat  = "InvalidImageFormatException"
	errCodeImageTooLarge       = "ImageTooLargeException"
	errCodeThrottling          = "ThrottlingException"
	errCodeProvisionedExceeded = "ProvisionedThroughputExceededException"
)

// RekognitionAPI is the subset of the AWS client used here
type RekognitionAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// Client wraps the AWS Rekognition client
type Client struct {
	rekognition RekognitionAPI
	config      Config
}

// NewClient creates a new Rekognition client with the provided configuration
// It uses the AWS default credential chain to authenticate
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		rekognition: rekognition.NewFromConfig(awsCfg),
		config:      cfg,
	}, nil
}

// DetectFaceDetails calls DetectFaces with every attribute enabled
func (c *Client) DetectFaceDetails(ctx context.Context, image []byte) ([]types.FaceDetail, error) {
	output, err := c.rekognition.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, parseError(err)
	}
	return output.FaceDetails, nil
}

// parseError maps AWS API error codes to package errors
func parseError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied:
			return fmt.Errorf("detect faces: %w", ErrInvalidCredentials)
		case errCodeInvalidParameter, errCodeInvalidImageFormat, errCodeImageTooLarge:
			return fmt.Errorf("%w: %s", ErrInvalidImage, apiErr.ErrorMessage())
		case errCodeThrottling, errCodeProvisionedExceeded:
			return fmt.Errorf("detect faces: %w", ErrThrottled)
		}
	}
	return fmt.Errorf("detect faces: %w", err)
}
