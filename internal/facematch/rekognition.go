package facematch

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"esupervision/pkg/platform/retry"
)

// rekognitionAPI is the slice of the Rekognition client we call.
type rekognitionAPI interface {
	CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
}

// RekognitionComparer compares faces via AWS Rekognition, reading both
// images straight from the media bucket.
type RekognitionComparer struct {
	client    rekognitionAPI
	bucket    string
	threshold float32
	policy    retry.Policy
}

func NewRekognition(client *rekognition.Client, bucket string, similarityThreshold float32) *RekognitionComparer {
	return &RekognitionComparer{
		client:    client,
		bucket:    bucket,
		threshold: similarityThreshold,
		policy:    retry.DefaultPolicy(),
	}
}

func (c *RekognitionComparer) Compare(ctx context.Context, referenceKey, snapshotKey string) (Result, error) {
	input := &rekognition.CompareFacesInput{
		SourceImage: &types.Image{
			S3Object: &types.S3Object{Bucket: aws.String(c.bucket), Name: aws.String(referenceKey)},
		},
		TargetImage: &types.Image{
			S3Object: &types.S3Object{Bucket: aws.String(c.bucket), Name: aws.String(snapshotKey)},
		},
		SimilarityThreshold: aws.Float32(c.threshold),
	}

	var out *rekognition.CompareFacesOutput
	err := retry.Do(ctx, c.policy, func() error {
		var callErr error
		out, callErr = c.client.CompareFaces(ctx, input)
		if callErr != nil && !retryable(callErr) {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		// No face in either image comes back as a client error, not an
		// empty match list.
		var invalid *types.InvalidParameterException
		if errors.As(err, &invalid) {
			return ResultNoFaceDetected, nil
		}
		return "", err
	}

	if len(out.FaceMatches) > 0 {
		return ResultMatch, nil
	}
	return ResultNoMatch, nil
}

func retryable(err error) bool {
	var throttled *types.ThrottlingException
	var internal *types.InternalServerError
	return errors.As(err, &throttled) || errors.As(err, &internal)
}
