package access

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/marmos91/filegate/pkg/store/object"
)

// STSExchanger trades an IAM role and an inline session policy for
// temporary credentials through the AWS Security Token Service.
//
// The inline policy passed to AssumeRole can only restrict the role's
// permissions, never extend them, so the role configured per partition
// acts as the outer permission boundary.
type STSExchanger struct {
	client *sts.Client
}

// STSExchangerConfig carries dependencies for creating an STSExchanger.
type STSExchangerConfig struct {
	// Client is the STS client used for AssumeRole calls. Required.
	Client *sts.Client
}

// NewSTSExchanger creates a TokenExchanger backed by AWS STS.
func NewSTSExchanger(cfg STSExchangerConfig) (*STSExchanger, error) {
	if cfg.Client == nil {
		return nil, &object.StoreError{
			Code:    object.ErrConfigurationMissing,
			Message: "STS client is required",
		}
	}
	return &STSExchanger{client: cfg.Client}, nil
}

// Exchange assumes roleARN with the given inline policy and returns the
// resulting temporary credentials.
func (e *STSExchanger) Exchange(ctx context.Context, roleARN, sessionName, policy string, duration time.Duration) (*TemporaryCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := e.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		Policy:          aws.String(policy),
		DurationSeconds: aws.Int32(int32(duration.Seconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}

	creds := out.Credentials
	cred := &TemporaryCredential{
		AccessKeyID:  aws.ToString(creds.AccessKeyId),
		SecretKey:    aws.ToString(creds.SecretAccessKey),
		SessionToken: aws.ToString(creds.SessionToken),
	}
	if creds.Expiration != nil {
		cred.ExpiresAt = *creds.Expiration
	}
	return cred, nil
}
