package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	c := &Client{
		client:  client,
		apiKey:  "test_api_key",
		from:    "journal@flippl.example",
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return c, server
}

func TestSendMagicLink(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		var received message
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/messages", r.URL.Path)
			assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id": "msg_1"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		err := c.SendMagicLink(context.Background(), "trader@example.com", "https://flippl.example/auth/callback?token=abc")

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, "trader@example.com", received.To)
		assert.Equal(t, "journal@flippl.example", received.From)
		assert.Contains(t, received.Text, "token=abc")
	})

	t.Run("RetriesServerError", func(t *testing.T) {
		// Arrange: first attempt fails with 500, second succeeds.
		attempts := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id": "msg_2"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		err := c.SendPasswordReset(context.Background(), "trader@example.com", "https://flippl.example/auth/reset?token=xyz")

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		// Arrange
		attempts := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid recipient"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		err := c.SendEmailChange(context.Background(), "not-an-email", "https://flippl.example/auth/email-change?token=xyz")

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to deliver email")
		assert.Equal(t, 1, attempts)
	})
}
