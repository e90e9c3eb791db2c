package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/config"
)

func Test_Init_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.Tracing{ServiceName: "event-reservations"}, "test", zap.NewNop())

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
