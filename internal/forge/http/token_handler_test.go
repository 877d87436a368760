package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	"github.com/allisson/dominion/internal/forge/http/dto"
	"github.com/allisson/dominion/internal/forge/http/mocks"
	"github.com/allisson/dominion/internal/gate"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

func setupTokenTestHandler(t *testing.T) (*TokenHandler, *mocks.MockTokenForgeUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &mocks.MockTokenForgeUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewTokenHandler(mockUseCase, logger), mockUseCase
}

func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = bytes.NewBufferString(b)
	default:
		bodyBytes, _ := json.Marshal(b)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

func intPtr(v int) *int {
	return &v
}

func sampleEnvelope() forgeDomain.Envelope {
	return forgeDomain.Envelope{
		Token:         "eyJwcm92aWRlciI6InJlbmRlciJ9",
		Signature:     "ab12",
		Nonce:         "AQID",
		Algorithm:     forgeDomain.AlgorithmHMACSHA384,
		KeyDerivation: forgeDomain.KeyDerivationHKDFSHA384,
	}
}

func sampleOutput() *forgeDomain.MintOutput {
	issued := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &forgeDomain.MintOutput{
		Envelope: sampleEnvelope(),
		Payload: forgeDomain.Payload{
			TokenID:    uuid.Must(uuid.NewV7()),
			Provider:   "render",
			Version:    forgeDomain.ProtocolVersion,
			IssuedAt:   issued,
			ExpiresAt:  issued.Add(30 * time.Minute),
			TTLSeconds: 1800,
			Metadata:   map[string]string{},
		},
		Category: "optimal",
		Epoch:    1,
	}
}

func TestTokenHandler_MintHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		output := sampleOutput()

		mockUseCase.On("Mint", mock.Anything, &forgeDomain.MintInput{
			Provider:       "render",
			ResonanceScore: 85,
			Environment:    "production",
			Metadata:       map[string]string{"deploy": "web-42"},
		}).Return(output, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens", dto.MintTokenRequest{
			Provider:       "render",
			ResonanceScore: intPtr(85),
			Environment:    "production",
			Metadata:       map[string]string{"deploy": "web-42"},
		})
		handler.MintHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, output.Envelope.Token, response.Token)
		assert.Equal(t, output.Envelope.Signature, response.Signature)
		assert.Equal(t, "HMAC-SHA384", response.Algorithm)
		assert.Equal(t, "HKDF-SHA384", response.KeyDerivation)
		assert.Equal(t, int64(1800), response.TTLSeconds)
		assert.Equal(t, "optimal", response.RiskCategory)
		assert.Equal(t, output.Payload.TokenID.String(), response.TokenID)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Success_ZeroScoreIsAccepted", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Mint", mock.Anything, mock.MatchedBy(func(in *forgeDomain.MintInput) bool {
			return in.ResonanceScore == 0
		})).Return(sampleOutput(), nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens", `{"provider":"render","resonance_score":0}`)
		handler.MintHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/tokens", `{"provider":`)
		handler.MintHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything)
	})

	t.Run("Error_ValidationFailures", func(t *testing.T) {
		cases := map[string]string{
			"missing provider":      `{"resonance_score":50}`,
			"upper case provider":   `{"provider":"Render","resonance_score":50}`,
			"missing score":         `{"provider":"render"}`,
			"score out of range":    `{"provider":"render","resonance_score":101}`,
			"environment too long":  `{"provider":"render","resonance_score":50,"environment":"` + string(bytes.Repeat([]byte("x"), 33)) + `"}`,
			"environment has space": `{"provider":"render","resonance_score":50,"environment":" production"}`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				handler, mockUseCase := setupTokenTestHandler(t)

				c, w := createTestContext(http.MethodPost, "/v1/tokens", body)
				handler.MintHandler(c)

				assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
				mockUseCase.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Error_RateLimited", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Mint", mock.Anything, mock.Anything).
			Return(nil, &gate.RateLimitError{Provider: "render", RetryAfter: 1500 * time.Millisecond}).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens", `{"provider":"render","resonance_score":50}`)
		handler.MintHandler(c)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("Error_BehaviorAnomaly", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Mint", mock.Anything, mock.Anything).Return(nil, gate.ErrBehaviorAnomaly).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens", `{"provider":"render","resonance_score":50}`)
		handler.MintHandler(c)

		assert.Equal(t, http.StatusLocked, w.Code)
		assert.Contains(t, w.Body.String(), "behavior_anomaly")
	})

	t.Run("Error_UnknownProvider", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Mint", mock.Anything, mock.Anything).Return(nil, keysDomain.ErrUnknownProvider).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens", `{"provider":"heroku","resonance_score":50}`)
		handler.MintHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestTokenHandler_ValidateHandler(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		output := sampleOutput()

		mockUseCase.On("Validate", mock.Anything, output.Envelope).Return(forgeDomain.ValidationResult{
			Valid:   true,
			Payload: &output.Payload,
			Epoch:   1,
		}).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/validate", output.Envelope)
		handler.ValidateHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ValidationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Valid)
		assert.Empty(t, response.Reason)
		require.NotNil(t, response.Payload)
		assert.Equal(t, "render", response.Payload.Provider)
		assert.Equal(t, output.Payload.TokenID.String(), response.Payload.TokenID)
	})

	t.Run("RejectedHidesPayload", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		output := sampleOutput()

		mockUseCase.On("Validate", mock.Anything, mock.Anything).
			Return(forgeDomain.Rejected(forgeDomain.ReasonExpired, &output.Payload)).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/validate", output.Envelope)
		handler.ValidateHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"valid":false,"reason":"expired"}`, w.Body.String())
	})

	t.Run("EmptyEnvelopeIsAReason", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Validate", mock.Anything, forgeDomain.Envelope{}).
			Return(forgeDomain.Rejected(forgeDomain.ReasonBadSignature, nil)).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/validate", `{}`)
		handler.ValidateHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"valid":false,"reason":"bad_signature"}`, w.Body.String())
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := setupTokenTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/tokens/validate", `[`)
		handler.ValidateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestTokenHandler_RenewHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		env := sampleEnvelope()

		mockUseCase.On("Renew", mock.Anything, &forgeDomain.RenewInput{
			Envelope:       env,
			ResonanceScore: intPtr(90),
		}).Return(sampleOutput(), nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", map[string]any{
			"envelope":        env,
			"resonance_score": 90,
		})
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Success_ScoreOmitted", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Renew", mock.Anything, mock.MatchedBy(func(in *forgeDomain.RenewInput) bool {
			return in.ResonanceScore == nil
		})).Return(sampleOutput(), nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", map[string]any{"envelope": sampleEnvelope()})
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Error_NotDue", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Renew", mock.Anything, mock.Anything).Return(nil, forgeDomain.ErrRenewalNotDue).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", map[string]any{"envelope": sampleEnvelope()})
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Error_Rejected", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		mockUseCase.On("Renew", mock.Anything, mock.Anything).
			Return(nil, &forgeDomain.RejectionError{Reason: forgeDomain.ReasonBadSignature}).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", map[string]any{"envelope": sampleEnvelope()})
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_MissingEnvelopeFields", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", `{"envelope":{"token":"abc"}}`)
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertNotCalled(t, "Renew", mock.Anything, mock.Anything)
	})

	t.Run("Error_SignatureNotHexReachesForge", func(t *testing.T) {
		handler, mockUseCase := setupTokenTestHandler(t)
		env := sampleEnvelope()
		env.Signature = "zz"

		mockUseCase.On("Renew", mock.Anything, mock.MatchedBy(func(in *forgeDomain.RenewInput) bool {
			return in.Envelope.Signature == "zz"
		})).Return(nil, &forgeDomain.RejectionError{Reason: forgeDomain.ReasonBadSignature}).Once()

		c, w := createTestContext(http.MethodPost, "/v1/tokens/renew", map[string]any{"envelope": env})
		handler.RenewHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUseCase.AssertExpectations(t)
	})
}
