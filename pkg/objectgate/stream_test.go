package objectgate_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/objectgate/pkg/objectgate"
)

func TestReaderStream(t *testing.T) {
	t.Run("EmptyBodyStillSendsHead", func(t *testing.T) {
		stream := objectgate.NewReaderStream(&objectgate.PutChunk{Bucket: "b", Key: "k"}, strings.NewReader(""), 4)

		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "b", chunk.Bucket)
		assert.Empty(t, chunk.Object)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("SplitsBody", func(t *testing.T) {
		stream := objectgate.NewReaderStream(&objectgate.PutChunk{Key: "k"}, strings.NewReader("abcdefghij"), 4)
		var parts []string
		var keys []string
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			parts = append(parts, string(chunk.Object))
			keys = append(keys, chunk.Key)
		}
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, parts)
		assert.Equal(t, []string{"k", "", ""}, keys)
	})

	t.Run("ExactMultiple", func(t *testing.T) {
		stream := objectgate.NewReaderStream(nil, strings.NewReader("abcd"), 4)
		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(chunk.Object))
		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("ReadError", func(t *testing.T) {
		stream := objectgate.NewReaderStream(nil, io.MultiReader(strings.NewReader("ab"), errReader{}), 4)
		_, err := stream.Recv()
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }
