package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateRequest(t *testing.T) {
	svc := NewService([]Key{{Name: "bot", Value: "k-1"}, {Value: "  "}})
	require.Equal(t, ModeAPIKey, svc.Mode())

	subject, err := svc.AuthenticateRequest("Bearer k-1")
	require.NoError(t, err)
	assert.Equal(t, "bot", subject.Name)

	subject, err = svc.AuthenticateRequest("k-1")
	require.NoError(t, err)
	assert.Equal(t, "bot", subject.Name)

	_, err = svc.AuthenticateRequest("")
	assert.ErrorIs(t, err, ErrMissingToken)
	_, err = svc.AuthenticateRequest("Bearer nope")
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Equal(t, ModeDisabled, NewService(nil).Mode())
}

func TestMiddleware(t *testing.T) {
	svc := NewService([]Key{{Name: "bot", Value: "k-1"}})
	var seen *Subject
	handler := svc.Middleware("/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer k-1")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "bot", seen.Name)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubjectName(t *testing.T) {
	assert.Empty(t, SubjectName(context.Background()))
	ctx := WithSubject(context.Background(), &Subject{Name: "telegram"})
	assert.Equal(t, "telegram", SubjectName(ctx))
	assert.Equal(t, ctx, WithSubject(ctx, nil))
}
