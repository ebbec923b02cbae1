package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

var testBase = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceUserIDOnly(t *testing.T) {
	path := writeFile(t, "data.csv", strings.Join([]string{
		"user_id,role,content",
		"u2,user,hello",
		"u1,user,hi there",
		"u1,assistant,\"hi, how can I help?\"",
		"u2,assistant,hey",
	}, "\n"))

	convs, err := NewCSVSource(path, testBase).GetConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "u1", convs[0].ID)
	assert.Equal(t, "u1", convs[0].UserID)
	assert.Equal(t, "u2", convs[1].ID)

	msgs := convs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "0", msgs[0].ID)
	assert.Equal(t, "1", msgs[1].ID)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi, how can I help?", msgs[1].Content)
	assert.Equal(t, testBase, msgs[0].Timestamp)
	assert.Equal(t, time.Second, msgs[1].Timestamp.Sub(msgs[0].Timestamp))
}

func TestCSVSourceExplicitColumns(t *testing.T) {
	path := writeFile(t, "data.csv", strings.Join([]string{
		"conversation_id,user_id,role,content,timestamp,message_id",
		"c1,u9,user,first,2025-01-02 10:00:00,m-a",
		"c1,u9,assistant,second,2025-01-02T10:00:05Z,m-b",
	}, "\n"))

	convs, err := NewCSVSource(path, testBase).GetConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "u9", conv.UserID)
	assert.Equal(t, "m-a", conv.Messages[0].ID)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), conv.Messages[0].Timestamp)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 5, 0, time.UTC), conv.Messages[1].Timestamp)
}

func TestCSVSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no id column", "role,content\nuser,hi"},
		{"no content column", "conversation_id,role\nc1,user"},
		{"bad role", "conversation_id,role,content\nc1,system,hi"},
		{"bad timestamp", "conversation_id,role,content,timestamp\nc1,user,hi,yesterday"},
		{"duplicate message id", "conversation_id,role,content,message_id\nc1,user,a,x\nc1,assistant,b,x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "data.csv", tt.content)
			_, err := NewCSVSource(path, testBase).GetConversations(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestJSONSource(t *testing.T) {
	path := writeFile(t, "data.json", `{
		"conv-b": {"messages": [{"role": "user", "content": "b0"}]},
		"conv-a": {"user_id": "alice", "messages": [
			{"role": "user", "content": "a0"},
			{"role": "assistant", "content": "a1", "timestamp": "2025-01-01T00:00:00Z"}
		]}
	}`)

	convs, err := NewJSONSource(path, testBase).GetConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "conv-a", convs[0].ID)
	assert.Equal(t, "alice", convs[0].UserID)
	assert.Equal(t, "conv-b", convs[1].UserID)
	assert.Equal(t, testBase, convs[0].Messages[0].Timestamp)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), convs[0].Messages[1].Timestamp)
}

func TestNewSelectsSource(t *testing.T) {
	ctx := context.Background()

	src, err := New(ctx, "/tmp/data.csv", Options{})
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = New(ctx, "/tmp/data.json", Options{})
	require.NoError(t, err)
	assert.IsType(t, &JSONSource{}, src)

	_, err = New(ctx, "", Options{})
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := ParseS3URI("s3://my-bucket/path/to/files")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/files", prefix)

	bucket, prefix, err = ParseS3URI("s3://only-bucket")
	require.NoError(t, err)
	assert.Equal(t, "only-bucket", bucket)
	assert.Empty(t, prefix)

	for _, bad := range []string{"s3://", "s3:///prefix", "https://bucket/key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

type fakeS3 struct {
	pages   [][]string
	objects map[string]string
	calls   int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := f.calls
	f.calls++
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(page < len(f.pages)-1)}
	if page < len(f.pages)-1 {
		out.NextContinuationToken = aws.String("next")
	}
	for _, key := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3SourceReadsCSVObjects(t *testing.T) {
	client := &fakeS3{
		pages: [][]string{
			{"exports/", "exports/a.csv", "exports/readme.txt"},
			{"exports/b.CSV"},
		},
		objects: map[string]string{
			"exports/a.csv": "conversation_id,role,content\nc2,user,hi\n",
			"exports/b.CSV": "conversation_id,role,content\nc1,user,hello\nc1,assistant,hey\n",
		},
	}

	src, err := NewS3SourceWithClient(client, "s3://bucket/exports", testBase)
	require.NoError(t, err)

	convs, err := src.GetConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "c2", convs[1].ID)
	assert.Equal(t, 2, client.calls)
}

func TestS3SourceMalformedURI(t *testing.T) {
	_, err := NewS3SourceWithClient(&fakeS3{}, "s3://", testBase)
	assert.Error(t, err)

	_, err = New(context.Background(), "s3://", Options{})
	assert.Error(t, err)
}
