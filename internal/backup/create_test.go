package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/ec2backup/internal/config"
	"github.com/jbweber/ec2backup/internal/naming"
	"github.com/jbweber/ec2backup/internal/tags"
)

func instanceWithTags(id string, kv ...string) Instance {
	return Instance{ID: id, State: "running", Tags: tags.FromEC2(sdkTags(kv...))}
}

func TestCreateImage_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1", "Name", "web1"))
	require.NoError(t, err)

	// Verify the returned image
	assert.Equal(t, "i-1", created.InstanceID)
	assert.Equal(t, "ami-i-1", created.ImageID)
	assert.Equal(t, "20240101_1030-LEB-web1", created.Name)
	assert.Equal(t, "2024-01-08", created.DeleteOn)
	assert.False(t, created.NoReboot)

	// Verify the create request
	require.Len(t, env.ec2.createImageCalls, 1)
	in := env.ec2.createImageCalls[0]
	assert.Equal(t, "i-1", aws.ToString(in.InstanceId))
	assert.Equal(t, "20240101_1030-LEB-web1", aws.ToString(in.Name))
	assert.Equal(t, naming.ImageDescription, aws.ToString(in.Description))
	assert.False(t, aws.ToBool(in.NoReboot))

	// Verify the waiter was bounded by the configured timeout
	assert.Equal(t, []string{"ami-i-1"}, env.waiter.waitCalls)
	assert.Equal(t, []time.Duration{config.DefaultWaitTimeout}, env.waiter.waitTimeouts)

	// Verify tags: system tags first, then the copied Name (same value)
	require.Len(t, env.ec2.createTagsCalls, 1)
	tagIn := env.ec2.createTagsCalls[0]
	assert.Equal(t, []string{"ami-i-1"}, tagIn.Resources)
	assert.Equal(t, []string{
		tags.KeyDeleteOn, "2024-01-08",
		tags.KeyInstanceNameFrom, "web1",
		tags.KeyName, "web1",
	}, tagPairs(tagIn.Tags))

	// Verify order: existence check, create, wait, tag
	assert.Equal(t, []string{"create-image:i-1", "wait:ami-i-1", "create-tags:ami-i-1"}, env.ops())
	require.Len(t, env.ec2.describeInstancesCalls, 1)
	assert.Equal(t, []string{"i-1"}, env.ec2.describeInstancesCalls[0].InstanceIds)
}

func TestCreateImage_NoNameUsesInstanceID(t *testing.T) {
	env := newTestEnv(t, nil)

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-0abc", "BackupIT", ""))
	require.NoError(t, err)

	assert.Equal(t, "20240101_1030-LEB-i-0abc", created.Name)
	value, _ := created.Tags.Get(tags.KeyName)
	assert.Equal(t, "i-0abc", value)
	value, _ = created.Tags.Get(tags.KeyInstanceNameFrom)
	assert.Equal(t, "i-0abc", value)
}

func TestCreateImage_RetentionDays(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RetentionDays = 30
	})

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", created.DeleteOn)
}

func TestCreateImage_RebootOverride(t *testing.T) {
	tests := []struct {
		name         string
		kv           []string
		wantNoReboot bool
	}{
		{name: "absent", kv: nil, wantNoReboot: false},
		{name: "false disables reboot", kv: []string{tags.KeyReboot, "false"}, wantNoReboot: true},
		{name: "true keeps reboot", kv: []string{tags.KeyReboot, "true"}, wantNoReboot: false},
		{name: "False is not false", kv: []string{tags.KeyReboot, "False"}, wantNoReboot: false},
		{name: "empty keeps reboot", kv: []string{tags.KeyReboot, ""}, wantNoReboot: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1", tt.kv...))
			require.NoError(t, err)

			assert.Equal(t, tt.wantNoReboot, created.NoReboot)
			require.Len(t, env.ec2.createImageCalls, 1)
			assert.Equal(t, tt.wantNoReboot, aws.ToBool(env.ec2.createImageCalls[0].NoReboot))
		})
	}
}

func TestCreateImage_CopyTagDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	inst := instanceWithTags("i-1",
		"Name", "web1",
		"Team", "platform",
		tags.KeyCopyTag, "false")

	_, err := env.runner.CreateImage(context.Background(), inst)
	require.NoError(t, err)

	require.Len(t, env.ec2.createTagsCalls, 1)
	assert.Equal(t, []string{
		tags.KeyDeleteOn, "2024-01-08",
		tags.KeyInstanceNameFrom, "web1",
		tags.KeyName, "web1",
	}, tagPairs(env.ec2.createTagsCalls[0].Tags))
}

func TestCreateImage_CopyTags(t *testing.T) {
	env := newTestEnv(t, nil)

	inst := instanceWithTags("i-1",
		"BackupIT", "",
		"aws:cloudformation:stack-name", "prod",
		"Name", "web1",
		"Team", "platform",
		tags.KeyDeleteOn, "1999-01-01",
		"InstanceNameFrom", "override")

	created, err := env.runner.CreateImage(context.Background(), inst)
	require.NoError(t, err)

	// System tags keep their positions; copied values win except LEB-DeleteOn.
	want := []string{
		tags.KeyDeleteOn, "2024-01-08",
		tags.KeyInstanceNameFrom, "override",
		tags.KeyName, "web1",
		"BackupIT", "",
		"Team", "platform",
	}
	require.Len(t, env.ec2.createTagsCalls, 1)
	assert.Equal(t, want, tagPairs(env.ec2.createTagsCalls[0].Tags))
	assert.Equal(t, want, tagPairs(created.Tags.EC2()))

	assert.False(t, created.Tags.Has("aws:cloudformation:stack-name"))
}

func TestCreateImage_InstanceNotFound(t *testing.T) {
	tests := []struct {
		name     string
		describe func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	}{
		{
			name: "api error",
			describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
				return nil, errors.New("InvalidInstanceID.NotFound")
			},
		},
		{
			name: "empty result",
			describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
				return &ec2.DescribeInstancesOutput{}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.ec2.describeInstancesFunc = tt.describe

			created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-gone"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInstanceNotFound)
			assert.Contains(t, err.Error(), "i-gone")
			assert.Nil(t, created)

			assert.Empty(t, env.ec2.createImageCalls, "should not create image if instance is gone")
			assert.Empty(t, env.ops())
		})
	}
}

func TestCreateImage_CreateFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ec2.createImageFunc = func(*ec2.CreateImageInput) (*ec2.CreateImageOutput, error) {
		return nil, errors.New("InvalidAMIName.Duplicate")
	}

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1"))
	require.Error(t, err)
	assert.Nil(t, created)
	assert.Contains(t, err.Error(), "failed to create image of i-1")
	assert.Empty(t, env.waiter.waitCalls)
	assert.Empty(t, env.ec2.createTagsCalls)
}

func TestCreateImage_WaitFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.waiter.waitFunc = func(string, time.Duration) error {
		return errors.New("exceeded max wait time for ImageExists waiter")
	}

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ami-i-1")

	// The image exists but is untagged; the id is still reported.
	require.NotNil(t, created)
	assert.Equal(t, "ami-i-1", created.ImageID)
	assert.Empty(t, env.ec2.createTagsCalls, "should not tag an image that never appeared")
}

func TestCreateImage_TagFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ec2.createTagsFunc = func(*ec2.CreateTagsInput) (*ec2.CreateTagsOutput, error) {
		return nil, errors.New("TagLimitExceeded")
	}

	_, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to tag image ami-i-1")
}

func TestCreateImage_DryRun(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.DryRun = true
	})

	created, err := env.runner.CreateImage(context.Background(), instanceWithTags("i-1", "Name", "web1"))
	require.NoError(t, err)

	assert.Empty(t, created.ImageID)
	assert.Equal(t, "20240101_1030-LEB-web1", created.Name)
	assert.Equal(t, "2024-01-08", created.DeleteOn)
	assert.Len(t, env.ec2.describeInstancesCalls, 1, "existence check still runs")
	assert.Empty(t, env.ops(), "no mutating calls in dry-run mode")
}
