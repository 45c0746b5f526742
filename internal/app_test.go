package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModulesGraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(modules(), fx.Invoke(func() {})))
}
