package seed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBytes() []byte {
	b := make([]byte, SeedBytes)
	for i := range b {
		b[i] = byte(i + 1)
	}

	return b
}

// TestNewTakesOwnership asserts that New wipes the caller's buffer.
func TestNewTakesOwnership(t *testing.T) {
	t.Parallel()

	b := testBytes()
	s, err := New(b)
	require.NoError(t, err)
	require.Equal(t, make([]byte, SeedBytes), b)
	require.False(t, s.Consumed())

	err = s.Use(func(secret []byte) error {
		require.Equal(t, testBytes(), secret)
		return nil
	})
	require.NoError(t, err)
}

// TestNewInvalidLength asserts seeds of the wrong size are rejected.
func TestNewInvalidLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 16, 32, 63, 65} {
		_, err := New(make([]byte, size))
		require.ErrorIs(t, err, ErrInvalidSeedLen)
	}
}

// TestUseOnce asserts a seed can only be read once, and that it is wiped
// even when the callback fails.
func TestUseOnce(t *testing.T) {
	t.Parallel()

	s, err := New(testBytes())
	require.NoError(t, err)

	var leaked []byte
	errCallback := errors.New("callback failed")
	err = s.Use(func(secret []byte) error {
		leaked = secret
		return errCallback
	})
	require.ErrorIs(t, err, errCallback)
	require.True(t, s.Consumed())

	// The slice handed out aliased the internal buffer, which must now
	// be zero.
	require.Equal(t, make([]byte, SeedBytes), leaked)

	err = s.Use(func([]byte) error {
		t.Fatal("callback must not run twice")
		return nil
	})
	require.ErrorIs(t, err, ErrSeedConsumed)
}

// TestDestroy asserts a destroyed seed cannot be used.
func TestDestroy(t *testing.T) {
	t.Parallel()

	s, err := New(testBytes())
	require.NoError(t, err)

	s.Destroy()
	require.True(t, s.Consumed())
	require.ErrorIs(t, s.Use(func([]byte) error { return nil }),
		ErrSeedConsumed)
}

// TestReaderSource reads consecutive seeds from a reader.
func TestReaderSource(t *testing.T) {
	t.Parallel()

	stream := append(testBytes(), bytes.Repeat([]byte{0xaa}, SeedBytes)...)
	src := NewReaderSource(bytes.NewReader(stream))

	first, err := src.Seed(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Use(func(secret []byte) error {
		require.Equal(t, testBytes(), secret)
		return nil
	}))

	second, err := src.Seed(context.Background())
	require.NoError(t, err)
	require.NoError(t, second.Use(func(secret []byte) error {
		require.Equal(t, bytes.Repeat([]byte{0xaa}, SeedBytes), secret)
		return nil
	}))

	// The stream is exhausted.
	_, err = src.Seed(context.Background())
	require.Error(t, err)
}

// TestReaderSourceCancelled asserts a cancelled context is honoured.
func TestReaderSourceCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReaderSource(bytes.NewReader(testBytes())).Seed(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// TestGenerate asserts the crypto source yields distinct seeds.
func TestGenerate(t *testing.T) {
	t.Parallel()

	var secrets [][]byte
	for i := 0; i < 2; i++ {
		s, err := Generate(context.Background())
		require.NoError(t, err)

		require.NoError(t, s.Use(func(secret []byte) error {
			secrets = append(secrets, bytes.Clone(secret))
			return nil
		}))
	}

	require.NotEqual(t, secrets[0], secrets[1])
}
