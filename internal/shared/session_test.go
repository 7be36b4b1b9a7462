package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-consulting/clearline/internal/shared"
)

func newManager(t *testing.T) *shared.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewManager(client, "clearline_session", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := m.Load(ctx, req)
	require.NoError(t, err)

	sess.SetIdentityToken("tok-abc")
	sess.Set("theme", "dark")
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "saved"})

	res := httptest.NewRecorder()
	require.NoError(t, m.Commit(ctx, res, sess))

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "clearline_session", cookies[0].Name)

	// Reload with the issued cookie.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: m.CookieName(), Value: sess.ID})
	loaded, err := m.Load(ctx, req2)
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", loaded.IdentityToken())
	assert.Equal(t, "dark", loaded.Get("theme"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionDestroy(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := m.Load(ctx, req)
	require.NoError(t, err)
	sess.SetIdentityToken("tok-abc")

	res := httptest.NewRecorder()
	require.NoError(t, m.Commit(ctx, res, sess))

	m.Destroy(sess)
	res2 := httptest.NewRecorder()
	require.NoError(t, m.Commit(ctx, res2, sess))

	cookies := res2.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: m.CookieName(), Value: sess.ID})
	loaded, err := m.Load(ctx, req2)
	require.NoError(t, err)
	assert.Empty(t, loaded.IdentityToken())
}

func TestCSRFTokenLifecycle(t *testing.T) {
	m := newManager(t)
	csrf := shared.NewCSRFManager("topsecret")

	sess, err := m.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, "forged"), shared.ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(sess, ""), shared.ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(nil, token), shared.ErrCSRFTokenMissing)
}
