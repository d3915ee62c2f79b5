package handlers

import (
	"net/http"
	"testing"
)

func TestAvatars_Catalogue(t *testing.T) {
	e := newEnv(t)
	res := decode[AvatarsResponse](t, e.do(http.MethodGet, "/avatars", nil))
	if len(res.Avatars) != len(testAvatars) {
		t.Fatalf("avatars = %v", res.Avatars)
	}
}

func TestAvatar_SetAndGet(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	w := e.do(http.MethodGet, "/avatar?email=ali@example.com", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"avatar":null}` {
		t.Fatalf("unset avatar: %d %s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodPost, "/avatar", SetAvatarRequest{Email: "ali@example.com", Avatar: testAvatars[1]})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set status = %d body=%s", w.Code, w.Body.String())
	}

	got := decode[AvatarResponse](t, e.do(http.MethodGet, "/avatar?email=ali@example.com", nil))
	if got.Avatar == nil || *got.Avatar != testAvatars[1] {
		t.Fatalf("avatar = %v", got.Avatar)
	}
}

func TestAvatar_Errors(t *testing.T) {
	e := newEnv(t)
	e.seed("ali@example.com")

	er := wantError(t, e.do(http.MethodPost, "/avatar", SetAvatarRequest{Email: "ali@example.com"}), http.StatusBadRequest, ErrCodeBadRequest)
	if er.Message != msgEmailAndAvatar {
		t.Fatalf("message = %q", er.Message)
	}
	wantError(t, e.do(http.MethodPost, "/avatar", SetAvatarRequest{Email: "ali@example.com", Avatar: "/etc/passwd"}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/avatar", SetAvatarRequest{Email: "ghost@example.com", Avatar: testAvatars[0]}), http.StatusUnauthorized, ErrCodeUnauthorized)
	wantError(t, e.do(http.MethodGet, "/avatar", nil), http.StatusBadRequest, ErrCodeBadRequest)
}
