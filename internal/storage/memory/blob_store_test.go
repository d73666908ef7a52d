package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("jpeg-bytes")
	uri, err := store.PutObject(context.Background(), "captures/kstartup/1/run-0.jpg", "image/jpeg", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://captures/kstartup/1/run-0.jpg", uri)

	payload[0] = 'J'
	obj, ok := store.Object("captures/kstartup/1/run-0.jpg")
	require.True(t, ok)
	require.Equal(t, "jpeg-bytes", string(obj.Data))
	require.Equal(t, "image/jpeg", obj.ContentType)
	require.Equal(t, []string{"captures/kstartup/1/run-0.jpg"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "image/jpeg", bytes.NewReader(nil))
	require.Error(t, err)
}
