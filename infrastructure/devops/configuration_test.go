package devops

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	value *string
	err   error
	asked string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.asked = *in.Name
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestLoadDatabases(t *testing.T) {
	client := &fakeSSM{value: aws.String(`
- name: Dev
  host: dev.db.internal
  username: app
  password: secret
- name: prod
  host: prod.db.internal:3307
  username: app
  password: other
`)}

	dbs, err := LoadDatabases(context.Background(), client, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultParameterName, client.asked)
	require.Len(t, dbs, 2)

	assert.Equal(t, "app:secret@tcp(dev.db.internal:3306)/presence?parseTime=true", dbs["dev"].DSN("presence"))
	assert.Equal(t, "app:other@tcp(prod.db.internal:3307)/?parseTime=true", dbs["prod"].DSN(""))
}

func TestLoadDatabasesErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeSSM
		want   string
	}{
		{name: "request fails", client: &fakeSSM{err: errors.New("denied")}, want: "denied"},
		{name: "empty parameter", client: &fakeSSM{}, want: "is empty"},
		{name: "bad yaml", client: &fakeSSM{value: aws.String("name: [")}, want: "unmarshal yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDatabases(context.Background(), tt.client, "custom")
			assert.ErrorContains(t, err, tt.want)
			assert.Equal(t, "custom", tt.client.asked)
		})
	}
}
