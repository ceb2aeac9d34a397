package filesystem

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memS3 struct {
	objects map[string][]byte
	types   map[string]string
	pages   [][]string
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(m.objects[*in.Key]))}, nil
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = raw
	m.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = int((*in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range m.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if page+1 < len(m.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func TestBucketWriteRead(t *testing.T) {
	client := &memS3{objects: map[string][]byte{}, types: map[string]string{}}
	b := NewBucket(client, "reports")
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "daily/2025-03-10.xlsx", "application/octet-stream", strings.NewReader("xlsx")))
	assert.Equal(t, "application/octet-stream", client.types["daily/2025-03-10.xlsx"])

	var out bytes.Buffer
	require.NoError(t, b.ReadFile(ctx, "daily/2025-03-10.xlsx", &out))
	assert.Equal(t, "xlsx", out.String())
}

func TestBucketListFilesFollowsPages(t *testing.T) {
	client := &memS3{pages: [][]string{{"a", "b"}, {"c"}}}
	keys, err := NewBucket(client, "reports").ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
