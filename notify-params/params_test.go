package notifyparams

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/tj/assert"
)

type fakeSSM struct {
	ssmiface.SSMAPI

	params map[string]string
}

func (f *fakeSSM) PutParameterWithContext(_ aws.Context, input *ssm.PutParameterInput, _ ...request.Option) (*ssm.PutParameterOutput, error) {
	f.params[aws.StringValue(input.Name)] = aws.StringValue(input.Value)
	return &ssm.PutParameterOutput{}, nil
}

func (f *fakeSSM) GetParameterWithContext(_ aws.Context, input *ssm.GetParameterInput, _ ...request.Option) (*ssm.GetParameterOutput, error) {
	value, ok := f.params[aws.StringValue(input.Name)]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %v", aws.StringValue(input.Name))
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssm.Parameter{Value: aws.String(value)},
	}, nil
}

func TestParams(t *testing.T) {
	ctx := context.Background()
	api := &fakeSSM{params: map[string]string{}}

	t.Run("endpoint round trip", func(t *testing.T) {
		err := PublishManagementEndpoint(ctx, api, "dev", "https://abc.execute-api.us-east-1.amazonaws.com/dev")
		assert.NoError(t, err)

		endpoint, err := ManagementEndpoint(ctx, api, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "https://abc.execute-api.us-east-1.amazonaws.com/dev", endpoint)
	})

	t.Run("user pool lookup", func(t *testing.T) {
		api.params[UserPoolIDPath("dev")] = "us-east-1_Abc123"
		api.params[AppClientIDPath("dev")] = "57dkniv4aafm5bv3g3lkj5b5ui"

		poolID, clientID, err := UserPool(ctx, api, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "us-east-1_Abc123", poolID)
		assert.Equal(t, "57dkniv4aafm5bv3g3lkj5b5ui", clientID)
	})

	t.Run("missing parameter errors", func(t *testing.T) {
		_, _, err := UserPool(ctx, api, "prod")
		assert.Error(t, err)
	})
}
