package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
	}{
		{name: "Success_WithNamespace", namespace: "cecsync"},
		{name: "Success_EmptyNamespace", namespace: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.namespace)

			require.NoError(t, err)
			assert.NotNil(t, provider.meterProvider)
			assert.NotNil(t, provider.exporter)
			assert.NotNil(t, provider.registry)
			assert.Same(t, provider.meterProvider, provider.MeterProvider())
		})
	}
}

func TestProvider_Handler(t *testing.T) {
	provider, err := NewProvider("cecsync_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	counter, err := provider.MeterProvider().Meter("cecsync_test").Int64Counter("cecsync_test_probe_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cecsync_test_probe_total")
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Success_ShutdownProvider", func(t *testing.T) {
		provider, err := NewProvider("cecsync_test")
		require.NoError(t, err)

		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("Success_ShutdownNilProvider", func(t *testing.T) {
		provider := &Provider{}

		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
