package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	l, err := Init("debug", "console")
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = Init("verbose", "json")
	require.Error(t, err)

	_, err = Init("info", "xml")
	require.Error(t, err)
}
