package acquisition

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageFile(t *testing.T, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "Title [B0001].aax")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	return path
}

func TestSizeClassifier_ShortFilesNeverSucceed(t *testing.T) {
	c := NewSizeClassifier(0)

	for _, n := range []int{0, 1, 33, 52, 99, 100} {
		path := stageFile(t, bytes.Repeat([]byte("z"), n))

		got, err := c.Classify(context.Background(), path)
		require.NoError(t, err, "length %d", n)
		assert.NotEqual(t, VerdictSuccess, got.Verdict, "length %d", n)
		assert.Equal(t, int64(n), got.Length)
		assert.NoFileExists(t, path, "length %d", n)
	}
}

func TestSizeClassifier_LongFilesSucceedRegardlessOfContent(t *testing.T) {
	c := NewSizeClassifier(0)

	for _, body := range [][]byte{
		bytes.Repeat([]byte{0}, 101),
		[]byte(serviceUnavailableMessage + strings.Repeat(" ", 60)),
		bytes.Repeat([]byte("a"), 10_000),
	} {
		path := stageFile(t, body)

		got, err := c.Classify(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, VerdictSuccess, got.Verdict)
		assert.Equal(t, int64(len(body)), got.Length)
		assert.Empty(t, got.Contents)
		assert.FileExists(t, path)
	}
}

func TestSizeClassifier_ServiceUnavailable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "exact message", body: serviceUnavailableMessage},
		{name: "different case", body: strings.ToUpper(serviceUnavailableMessage)},
		{name: "trailing newline", body: serviceUnavailableMessage + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := stageFile(t, []byte(tt.body))

			got, err := NewSizeClassifier(0).Classify(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, VerdictServiceUnavailable, got.Verdict)
			assert.Equal(t, tt.body, got.Contents)
			assert.NoFileExists(t, path)
		})
	}
}

func TestSizeClassifier_OtherShortContentIsCorrupt(t *testing.T) {
	body := `{"error":"forbidden"}`
	path := stageFile(t, []byte(body))

	got, err := NewSizeClassifier(0).Classify(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, VerdictCorruptOrUnknown, got.Verdict)
	assert.Equal(t, body, got.Contents)
	assert.NoFileExists(t, path)
}

func TestSizeClassifier_MissingFile(t *testing.T) {
	got, err := NewSizeClassifier(0).Classify(context.Background(), filepath.Join(t.TempDir(), "missing.aax"))
	require.Error(t, err)
	assert.Equal(t, VerdictCorruptOrUnknown, got.Verdict)
}

func TestSizeClassifier_SettleHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := stageFile(t, []byte("short"))

	_, err := NewSizeClassifier(DefaultSettleDelay).Classify(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, path)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "success", VerdictSuccess.String())
	assert.Equal(t, "service_unavailable", VerdictServiceUnavailable.String())
	assert.Equal(t, "corrupt_or_unknown", VerdictCorruptOrUnknown.String())
}
