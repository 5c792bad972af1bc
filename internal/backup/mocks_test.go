package backup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/jbweber/ec2backup/internal/config"
)

// mockEC2 is a mock implementation of the ec2API interface for testing.
type mockEC2 struct {
	mu sync.Mutex

	// Configurable behavior
	describeInstancesFunc func(in *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	createImageFunc       func(in *ec2.CreateImageInput) (*ec2.CreateImageOutput, error)
	describeImagesFunc    func(in *ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error)
	createTagsFunc        func(in *ec2.CreateTagsInput) (*ec2.CreateTagsOutput, error)
	describeSnapshotsFunc func(in *ec2.DescribeSnapshotsInput) (*ec2.DescribeSnapshotsOutput, error)
	deregisterImageFunc   func(imageID string) error
	deleteSnapshotFunc    func(snapshotID string) error

	// Call tracking
	describeInstancesCalls []*ec2.DescribeInstancesInput
	createImageCalls       []*ec2.CreateImageInput
	describeImagesCalls    []*ec2.DescribeImagesInput
	createTagsCalls        []*ec2.CreateTagsInput
	describeSnapshotsCalls []*ec2.DescribeSnapshotsInput
	deregisterImageCalls   []string
	deleteSnapshotCalls    []string

	// ops records mutating calls in order, shared with the waiter
	ops *[]string
}

// newMockEC2 creates a mock with default behavior: every instance looked up
// by id exists, discovery finds nothing and every mutation succeeds.
func newMockEC2() *mockEC2 {
	m := &mockEC2{ops: &[]string{}}

	m.describeInstancesFunc = func(in *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		if len(in.InstanceIds) > 0 {
			return reservationsOf(instance(in.InstanceIds[0], "running")), nil
		}
		return &ec2.DescribeInstancesOutput{}, nil
	}

	m.createImageFunc = func(in *ec2.CreateImageInput) (*ec2.CreateImageOutput, error) {
		return &ec2.CreateImageOutput{ImageId: aws.String("ami-" + aws.ToString(in.InstanceId))}, nil
	}

	m.describeImagesFunc = func(in *ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
		return &ec2.DescribeImagesOutput{}, nil
	}

	m.createTagsFunc = func(in *ec2.CreateTagsInput) (*ec2.CreateTagsOutput, error) {
		return &ec2.CreateTagsOutput{}, nil
	}

	m.describeSnapshotsFunc = func(in *ec2.DescribeSnapshotsInput) (*ec2.DescribeSnapshotsOutput, error) {
		return &ec2.DescribeSnapshotsOutput{}, nil
	}

	m.deregisterImageFunc = func(imageID string) error {
		return nil
	}

	m.deleteSnapshotFunc = func(snapshotID string) error {
		return nil
	}

	return m
}

func (m *mockEC2) record(op string) {
	*m.ops = append(*m.ops, op)
}

func (m *mockEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeInstancesCalls = append(m.describeInstancesCalls, in)
	return m.describeInstancesFunc(in)
}

func (m *mockEC2) CreateImage(_ context.Context, in *ec2.CreateImageInput, _ ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createImageCalls = append(m.createImageCalls, in)
	m.record("create-image:" + aws.ToString(in.InstanceId))
	return m.createImageFunc(in)
}

func (m *mockEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeImagesCalls = append(m.describeImagesCalls, in)
	return m.describeImagesFunc(in)
}

func (m *mockEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createTagsCalls = append(m.createTagsCalls, in)
	m.record("create-tags:" + in.Resources[0])
	return m.createTagsFunc(in)
}

func (m *mockEC2) DescribeSnapshots(_ context.Context, in *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeSnapshotsCalls = append(m.describeSnapshotsCalls, in)
	return m.describeSnapshotsFunc(in)
}

func (m *mockEC2) DeregisterImage(_ context.Context, in *ec2.DeregisterImageInput, _ ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(in.ImageId)
	m.deregisterImageCalls = append(m.deregisterImageCalls, id)
	m.record("deregister:" + id)
	if err := m.deregisterImageFunc(id); err != nil {
		return nil, err
	}
	return &ec2.DeregisterImageOutput{}, nil
}

func (m *mockEC2) DeleteSnapshot(_ context.Context, in *ec2.DeleteSnapshotInput, _ ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(in.SnapshotId)
	m.deleteSnapshotCalls = append(m.deleteSnapshotCalls, id)
	m.record("delete-snapshot:" + id)
	if err := m.deleteSnapshotFunc(id); err != nil {
		return nil, err
	}
	return &ec2.DeleteSnapshotOutput{}, nil
}

// mockSTS is a mock implementation of the stsAPI interface for testing.
type mockSTS struct {
	getCallerIdentityFunc  func() (*sts.GetCallerIdentityOutput, error)
	getCallerIdentityCalls int
}

func newMockSTS() *mockSTS {
	return &mockSTS{
		getCallerIdentityFunc: func() (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
		},
	}
}

func (m *mockSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	m.getCallerIdentityCalls++
	return m.getCallerIdentityFunc()
}

// mockWaiter is a mock implementation of the imageWaiter interface for testing.
type mockWaiter struct {
	waitFunc func(imageID string, maxWait time.Duration) error

	waitCalls    []string
	waitTimeouts []time.Duration

	ops *[]string
}

func newMockWaiter(ops *[]string) *mockWaiter {
	return &mockWaiter{
		waitFunc: func(string, time.Duration) error { return nil },
		ops:      ops,
	}
}

func (m *mockWaiter) Wait(_ context.Context, in *ec2.DescribeImagesInput, maxWait time.Duration, _ ...func(*ec2.ImageExistsWaiterOptions)) error {
	id := in.ImageIds[0]
	m.waitCalls = append(m.waitCalls, id)
	m.waitTimeouts = append(m.waitTimeouts, maxWait)
	*m.ops = append(*m.ops, "wait:"+id)
	return m.waitFunc(id, maxWait)
}

// mockRecorder counts workflow events.
type mockRecorder struct {
	created          int
	deletedImages    int
	deletedSnapshots int
	failures         map[string]int
	runs             int
	runErrors        int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{failures: map[string]int{}}
}

func (m *mockRecorder) ImageCreated()    { m.created++ }
func (m *mockRecorder) ImageDeleted()    { m.deletedImages++ }
func (m *mockRecorder) SnapshotDeleted() { m.deletedSnapshots++ }
func (m *mockRecorder) OperationFailed(operation string) {
	m.failures[operation]++
}
func (m *mockRecorder) RunFinished(_ time.Duration, err error) {
	m.runs++
	if err != nil {
		m.runErrors++
	}
}

// testEnv bundles a Runner with its mocks.
type testEnv struct {
	runner  *Runner
	ec2     *mockEC2
	sts     *mockSTS
	waiter  *mockWaiter
	metrics *mockRecorder
	clock   *testingclock.FakePassiveClock
	logs    *observer.ObservedLogs
	cfg     *config.Config
}

// testNow is 2024-01-01 10:30 UTC.
var testNow = time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

// newTestEnv builds a Runner with default configuration, mocks and a fake
// clock at testNow. modify runs before the Runner is built.
func newTestEnv(t *testing.T, modify func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}

	core, logs := observer.New(zap.DebugLevel)
	env := &testEnv{
		ec2:     newMockEC2(),
		sts:     newMockSTS(),
		metrics: newMockRecorder(),
		clock:   testingclock.NewFakePassiveClock(testNow),
		logs:    logs,
		cfg:     cfg,
	}
	env.waiter = newMockWaiter(env.ec2.ops)
	env.runner = newRunnerWithDeps(cfg, env.ec2, env.sts, env.waiter, zap.New(core),
		WithClock(env.clock), WithMetrics(env.metrics))
	return env
}

func (e *testEnv) ops() []string {
	return *e.ec2.ops
}

func (e *testEnv) errorLines() int {
	return e.logs.FilterLevelExact(zap.ErrorLevel).Len()
}

// instance builds an SDK instance with tags given as alternating key/value.
func instance(id, state string, kv ...string) types.Instance {
	return types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: types.InstanceStateName(state)},
		Tags:       sdkTags(kv...),
	}
}

func reservationsOf(instances ...types.Instance) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: instances}},
	}
}

// image builds an SDK image with tags given as alternating key/value.
func image(id string, kv ...string) types.Image {
	return types.Image{
		ImageId: aws.String(id),
		Name:    aws.String("20231225_0300-LEB-" + id),
		Tags:    sdkTags(kv...),
	}
}

func snapshot(id, description string) types.Snapshot {
	return types.Snapshot{
		SnapshotId:  aws.String(id),
		Description: aws.String(description),
	}
}

func sdkTags(kv ...string) []types.Tag {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("odd tag list: %v", kv))
	}
	out := make([]types.Tag, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, types.Tag{Key: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return out
}

// tagPairs flattens SDK tags into alternating key/value for comparisons.
func tagPairs(in []types.Tag) []string {
	out := make([]string, 0, len(in)*2)
	for _, tag := range in {
		out = append(out, aws.ToString(tag.Key), aws.ToString(tag.Value))
	}
	return out
}
