package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, line string) Record {
	t.Helper()
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	return rec
}

func TestWriteUpload(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1", "production")

	err := w.WriteUpload(context.Background(), &UploadRecord{
		FileName:    "report.pdf",
		MediaType:   "application/pdf",
		SizeBytes:   1500,
		Hash:        "abc",
		DownloadURL: "https://cdn.example/abc",
		EntityIDs:   []int64{7},
	})
	require.NoError(t, err)

	line := strings.TrimSuffix(buf.String(), "\n")
	require.NotContains(t, line, "\n", "record must be a single line")

	rec := decodeLine(t, line)
	assert.Equal(t, TypeUpload, rec.Type)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, "production", rec.Environment)
	assert.False(t, rec.TS.IsZero())

	var data UploadRecord
	require.NoError(t, json.Unmarshal(rec.Data, &data))
	assert.Equal(t, "report.pdf", data.FileName)
	assert.Equal(t, []int64{7}, data.EntityIDs)
}

func TestWriteEventAndError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-2", "alpha")

	require.NoError(t, w.WriteEvent(context.Background(), &EventRecord{
		SourceID: "com.classvr.portal",
		ActionID: "lesson_started",
	}))
	require.NoError(t, w.WriteError(context.Background(), &ErrorRecord{
		Code:     ErrCodeTransfer,
		Message:  "storage refused the object",
		FileName: "big.bin",
	}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, TypeEvent, decodeLine(t, lines[0]).Type)
	assert.Equal(t, TypeError, decodeLine(t, lines[1]).Type)
}

func TestWriteAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-3", "production")
	require.NoError(t, w.Close())

	err := w.WriteError(context.Background(), &ErrorRecord{Code: ErrCodeInternal, Message: "x"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestWriteCanceledContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-4", "production")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteError(ctx, &ErrorRecord{Code: ErrCodeInternal, Message: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

// syncBuffer serializes writes so the bytes.Buffer is safe under the
// writer's concurrent callers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConcurrentWritesAreAtomic(t *testing.T) {
	var buf syncBuffer
	w := NewJSONLWriter(&buf, "job-5", "production")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteError(context.Background(), &ErrorRecord{
				Code:    ErrCodeInternal,
				Message: strings.Repeat("m", 256),
			})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, writers)
	for _, line := range lines {
		decodeLine(t, line)
	}
}
