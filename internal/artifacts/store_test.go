package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBucket serves ListObjectsV2/GetObject from an in-memory map, two keys
// per page to exercise pagination.
type fakeBucket struct {
	objects map[string][]byte
	fail    map[string]error
}

func (f *fakeBucket) sortedKeys(prefix string) []string {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	keys := f.sortedKeys(aws.ToString(in.Prefix))
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range keys {
			if k > tok {
				start = i
				break
			}
		}
	}
	const pageSize = 2
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key " + key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestStoreList(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{
		"flu/job1/CA/a.csv": []byte("a"),
		"flu/job1/CA/b.csv": []byte("b"),
		"flu/job1/TX/c.csv": []byte("c"),
		"rsv/job1/WA/d.csv": []byte("d"),
	}}
	store := NewWithClient(bucket, "outputs")

	keys, err := store.List(context.Background(), "flu/")
	require.NoError(t, err)
	assert.Equal(t, []string{"flu/job1/CA/a.csv", "flu/job1/CA/b.csv", "flu/job1/TX/c.csv"}, keys)

	all, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreFetch(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{"flu/job1/CA/a.csv": []byte("payload")}}
	store := NewWithClient(bucket, "outputs")

	data, err := store.Fetch(context.Background(), "flu/job1/CA/a.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = store.Fetch(context.Background(), "flu/missing.csv")
	assert.Error(t, err)
}

func TestStoreDownload(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{
		"flu/job1/CA/a.csv": []byte("a"),
		"flu/job1/CA/b.csv": []byte("b"),
	}}
	store := NewWithClient(bucket, "outputs")
	cache := t.TempDir()

	paths, err := store.Download(context.Background(),
		[]string{"flu/job1/CA/a.csv", "flu/job1/CA/b.csv"}, cache)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	t.Run("cache hit skips the fetch", func(t *testing.T) {
		require.NoError(t, os.WriteFile(paths[0], []byte("edited"), 0o644))
		_, err := store.Download(context.Background(),
			[]string{"flu/job1/CA/a.csv"}, cache)
		require.NoError(t, err)
		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		assert.Equal(t, "edited", string(data))
	})

	t.Run("failure surfaces", func(t *testing.T) {
		bucket.fail = map[string]error{"flu/job1/TX/c.csv": errors.New("throttled")}
		bucket.objects["flu/job1/TX/c.csv"] = []byte("c")
		_, err := store.Download(context.Background(),
			[]string{"flu/job1/TX/c.csv"}, t.TempDir())
		assert.ErrorContains(t, err, "throttled")
	})

	t.Run("paths mirror key layout", func(t *testing.T) {
		assert.Equal(t, filepath.Join(cache, "flu", "job1", "CA", "a.csv"), paths[0])
	})
}
