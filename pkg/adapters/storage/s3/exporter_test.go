package s3

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu        sync.Mutex
	buckets   map[string]bool
	objects   map[string][]byte
	made      int
	putErr    error
	existsErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeObjects) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucketName], f.existsErr
}

func (f *fakeObjects) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucketName] = true
	f.made++
	return nil
}

func (f *fakeObjects) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucketName+"/"+objectName] = data
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func (f *fakeObjects) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type staticSource map[string]interface{}

func (s staticSource) Snapshot() map[string]interface{} {
	return s
}

func TestSnapshotExporter_Export(t *testing.T) {
	objects := newFakeObjects()
	exporter, err := newSnapshotExporter(objects, Config{Bucket: "snaps", Prefix: "/context/"},
		staticSource{"main.py": map[string]interface{}{"functions": []interface{}{"run"}}}, nil)
	require.NoError(t, err)

	key, err := exporter.Export(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "context/snapshot-"))
	assert.True(t, strings.HasSuffix(key, ".json"))

	_, err = exporter.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, objects.made, "bucket is created once")

	var snap Snapshot
	require.NoError(t, json.Unmarshal(objects.objects["snaps/"+key], &snap))
	assert.Contains(t, snap.Entries, "main.py")
	assert.False(t, snap.TakenAt.IsZero())
}

func TestSnapshotExporter_Errors(t *testing.T) {
	objects := newFakeObjects()
	objects.putErr = errors.New("access denied")
	exporter, err := newSnapshotExporter(objects, Config{Bucket: "snaps"}, staticSource{}, nil)
	require.NoError(t, err)

	_, err = exporter.Export(context.Background())
	assert.ErrorContains(t, err, "access denied")

	broken := newFakeObjects()
	broken.existsErr = errors.New("unreachable")
	exporter, err = newSnapshotExporter(broken, Config{Bucket: "snaps"}, staticSource{}, nil)
	require.NoError(t, err)
	_, err = exporter.Export(context.Background())
	assert.ErrorContains(t, err, "ensure bucket")
}

func TestSnapshotExporter_RetriesBucketAfterTransientError(t *testing.T) {
	objects := newFakeObjects()
	objects.existsErr = errors.New("connection refused")
	exporter, err := newSnapshotExporter(objects, Config{Bucket: "snaps"}, staticSource{"k": 1}, nil)
	require.NoError(t, err)

	_, err = exporter.Export(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	objects.mu.Lock()
	objects.existsErr = nil
	objects.mu.Unlock()

	key, err := exporter.Export(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, objects.made)
	assert.Equal(t, 1, objects.count())
}

func TestSnapshotExporter_RunExportsUntilCancelled(t *testing.T) {
	objects := newFakeObjects()
	exporter, err := newSnapshotExporter(objects, Config{Bucket: "snaps"}, staticSource{"k": 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exporter.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return objects.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exporter did not stop")
	}
}

func TestNewSnapshotExporter_Validation(t *testing.T) {
	_, err := NewSnapshotExporter(Config{}, staticSource{}, nil)
	assert.Error(t, err)

	_, err = NewSnapshotExporter(Config{Endpoint: "localhost:9000"}, staticSource{}, nil)
	assert.ErrorContains(t, err, "access key")

	_, err = NewSnapshotExporter(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, staticSource{}, nil)
	assert.ErrorContains(t, err, "bucket")

	exporter, err := NewSnapshotExporter(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "x"}, staticSource{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", exporter.region)
}
