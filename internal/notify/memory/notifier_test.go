package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifierRecordsMessages(t *testing.T) {
	t.Parallel()

	n := New()
	require.NoError(t, n.Send(context.Background(), "first"))
	require.NoError(t, n.Send(context.Background(), "second"))
	require.Equal(t, []string{"first", "second"}, n.Messages())

	msgs := n.Messages()
	msgs[0] = "mutated"
	require.Equal(t, "first", n.Messages()[0])
}

func TestNotifierFailWith(t *testing.T) {
	t.Parallel()

	n := New()
	boom := errors.New("boom")
	n.FailWith(boom)
	require.ErrorIs(t, n.Send(context.Background(), "lost"), boom)
	n.FailWith(nil)
	require.NoError(t, n.Send(context.Background(), "kept"))
	require.Equal(t, []string{"lost", "kept"}, n.Messages())
}
