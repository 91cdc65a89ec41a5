package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/cache"
	"paperboard/internal/handlers"
	"paperboard/internal/middleware"
	"paperboard/internal/models"
	"paperboard/internal/services"
	"paperboard/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine  *gin.Engine
	store   *memory.Store
	objects *memory.ObjectStore
	tokens  *services.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	objects := memory.NewObjectStore("http://paperboard.test/files")
	lru, err := cache.NewLRU(8)
	require.NoError(t, err)
	board := cache.NewLeaderboard(lru, time.Minute)

	tokens := services.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour)
	identity := services.NewIdentityService(st, st, objects, board, tokens, services.NewMailService(services.MailConfig{}, log), log)
	posts := services.NewPostService(st, objects, board, log, services.PostOptions{MaxUploadBytes: 1 << 20})

	engine := New(Deps{
		Log:      log,
		Resolver: identity,
		CORS:     middleware.DefaultCORSConfig(nil),
		Health:   handlers.NewHealthHandler(st),
		Auth:     handlers.NewAuthHandler(identity),
		Users:    handlers.NewUserHandler(identity),
		Posts:    handlers.NewPostHandler(posts, 1<<20),
		Votes:    handlers.NewVoteHandler(services.NewRatingService(st, board, log)),
		Comments: handlers.NewCommentHandler(services.NewCommentService(st, log)),
		Files:    handlers.NewFileHandler(objects),
	})
	return &testServer{engine: engine, store: st, objects: objects, tokens: tokens}
}

// user creates an active user and returns it with a bearer token.
func (s *testServer) user(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	u := &models.User{
		Email:        name + "@example.com",
		Username:     name,
		IsActive:     true,
		ProfileType:  models.ProfileProfessional,
		Organization: "Acme",
	}
	require.NoError(t, s.store.CreateUser(context.Background(), u))
	token, err := s.tokens.IssueAccess(u)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) post(t *testing.T, owner *models.User) *models.Post {
	t.Helper()
	p := &models.Post{UserID: owner.ID, URL: "https://files.test/x", FileType: "pdf", FileName: "x.pdf", ExternalFileID: "x"}
	require.NoError(t, s.store.CreatePost(context.Background(), p))
	return p
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return s.do(method, path, token, bytes.NewReader(raw), "application/json")
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperr.Body {
	t.Helper()
	var body apperr.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/posts/me"},
		{http.MethodGet, "/posts/queue"},
		{http.MethodPost, "/posts/upload"},
		{http.MethodPost, "/posts/00000000-0000-0000-0000-000000000001/rate"},
		{http.MethodDelete, "/posts/00000000-0000-0000-0000-000000000001"},
		{http.MethodPost, "/comments/00000000-0000-0000-0000-000000000001"},
		{http.MethodDelete, "/comments/00000000-0000-0000-0000-000000000001"},
		{http.MethodGet, "/users/me"},
	}
	for _, r := range routes {
		w := s.do(r.method, r.path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.method+" "+r.path)
	}
}

func TestListMineEmptyIsNoContent(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "ana")

	w := s.do(http.MethodGet, "/posts/me", token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRateFlow(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.user(t, "owner")
	_, tokenA := s.user(t, "a")
	_, tokenB := s.user(t, "b")
	p := s.post(t, owner)
	base := "/posts/" + p.ID.String() + "/rate"

	w := s.do(http.MethodPost, base+"?score=5", tokenA, nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Vote registered"}`, w.Body.String())

	w = s.doJSON(http.MethodPost, base, tokenB, gin.H{"score": 3})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, base+"?score=1", tokenA, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_voted", decodeError(t, w).Code)

	w = s.do(http.MethodGet, "/posts", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var posts []handlers.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, 2, posts[0].VoteCount)
	assert.InDelta(t, 4.0, posts[0].AverageRating, 1e-9)
	assert.Equal(t, "owner", posts[0].Owner.Username)
}

func TestRateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	owner, token := s.user(t, "owner")
	p := s.post(t, owner)

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/posts/" + p.ID.String() + "/rate?score=9", http.StatusBadRequest, "invalid_input"},
		{"/posts/" + p.ID.String() + "/rate?score=abc", http.StatusUnprocessableEntity, "invalid_input"},
		{"/posts/" + p.ID.String() + "/rate", http.StatusBadRequest, "invalid_input"},
		{"/posts/not-a-uuid/rate?score=3", http.StatusUnprocessableEntity, "invalid_input"},
		{"/posts/00000000-0000-0000-0000-000000000001/rate?score=3", http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		w := s.do(http.MethodPost, tc.path, token, nil, "")
		assert.Equal(t, tc.status, w.Code, tc.path)
		assert.Equal(t, tc.code, decodeError(t, w).Code, tc.path)
	}
}

func TestCommentFlow(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.user(t, "owner")
	_, otherToken := s.user(t, "other")
	p := s.post(t, owner)
	path := "/comments/" + p.ID.String()

	w := s.doJSON(http.MethodPost, path, ownerToken, gin.H{"body": "**first**"})
	require.Equal(t, http.StatusCreated, w.Code)
	var parent handlers.CommentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parent))
	assert.Contains(t, parent.BodyHTML, "<strong>first</strong>")
	assert.Nil(t, parent.ParentCommentID)
	assert.Equal(t, "owner", parent.Owner.Username)

	w = s.doJSON(http.MethodPost, path, otherToken, gin.H{"body": "reply", "parent_comment_id": parent.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.doJSON(http.MethodPost, path, otherToken, gin.H{"body": "orphan", "parent_comment_id": "00000000-0000-0000-0000-000000000009"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "parent_not_found", decodeError(t, w).Code)

	w = s.do(http.MethodPost, path, ownerToken, strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, path, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []handlers.CommentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 2)
	require.NotNil(t, comments[1].ParentCommentID)
	assert.Equal(t, parent.ID, *comments[1].ParentCommentID)

	w = s.do(http.MethodDelete, "/comments/"+parent.ID.String(), otherToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/comments/"+parent.ID.String(), ownerToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Comment deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, path, "", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func uploadBody(t *testing.T, name, contentType string, data []byte, caption string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("caption", caption))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAndDelete(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "ana")
	_, otherToken := s.user(t, "bo")

	body, ct := uploadBody(t, "notes.pdf", "application/pdf", []byte("%PDF-1.4\n%%EOF\n"), "<b>Week 1</b> notes")
	w := s.do(http.MethodPost, "/posts/upload", token, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view handlers.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "pdf", view.FileType)
	assert.Equal(t, "notes.pdf", view.FileName)
	assert.Equal(t, "Week 1 notes", view.Caption)
	assert.Equal(t, 1, s.objects.Len())

	w = s.do(http.MethodGet, "/posts/me", token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	fileURL, err := url.Parse(view.URL)
	require.NoError(t, err)
	w = s.do(http.MethodGet, fileURL.Path, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4\n%%EOF\n", w.Body.String())

	w = s.do(http.MethodDelete, "/posts/"+view.PostID.String(), otherToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/posts/"+view.PostID.String(), token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Post deleted successfully"}`, w.Body.String())
	assert.Equal(t, 0, s.objects.Len())

	w = s.do(http.MethodGet, fileURL.Path, "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "ana")

	body, ct := uploadBody(t, "pic.png", "image/png", []byte("\x89PNG\r\n\x1a\n"), "")
	w := s.do(http.MethodPost, "/posts/upload", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decodeError(t, w).Code)
	assert.Equal(t, 0, s.objects.Len())

	w = s.do(http.MethodPost, "/posts/upload", token, strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(http.MethodPost, "/auth/register", "", gin.H{
		"email":         "Cara@Example.com",
		"password":      "long-enough-password",
		"username":      "cara",
		"profile_type":  "student",
		"organization":  "State U",
		"program":       "Physics",
		"year_of_study": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created handlers.UserView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "cara@example.com", created.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.doJSON(http.MethodPost, "/auth/register", "", gin.H{
		"email": "cara@example.com", "password": "long-enough-password", "username": "c2", "profile_type": "student",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "conflict", decodeError(t, w).Code)

	form := url.Values{"username": {"cara@example.com"}, "password": {"wrong-password"}}
	w = s.do(http.MethodPost, "/auth/jwt/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_credentials", decodeError(t, w).Code)

	form.Set("password", "long-enough-password")
	w = s.do(http.MethodPost, "/auth/jwt/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "bearer", login.TokenType)

	w = s.do(http.MethodGet, "/users/me", login.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(http.MethodPatch, "/users/me", login.AccessToken, gin.H{"job_title": "Research Assistant"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/users/"+created.ID.String(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var public map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Equal(t, "Research Assistant", public["headline"])
	assert.NotContains(t, public, "email")

	w = s.do(http.MethodPost, "/auth/jwt/logout", login.AccessToken, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/users/me", login.AccessToken, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/users/me", login.AccessToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPasswordUnknownEmailIsAccepted(t *testing.T) {
	s := newTestServer(t)
	w := s.doJSON(http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = s.doJSON(http.MethodPost, "/auth/reset-password", "", gin.H{"token": "garbage", "password": "long-enough-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardAndQueue(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.user(t, "owner")
	voter, token := s.user(t, "voter")
	first := s.post(t, owner)
	second := s.post(t, owner)
	require.NoError(t, s.store.CastVote(context.Background(), first.ID, voter.ID, 2))
	require.NoError(t, s.store.CastVote(context.Background(), second.ID, owner.ID, 5))

	w := s.do(http.MethodGet, "/posts/leaderboard", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var board []handlers.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 2)
	assert.Equal(t, second.ID, board[0].PostID)

	w = s.do(http.MethodGet, "/posts/queue", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var queue []handlers.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, second.ID, queue[0].PostID)
}

func TestBindingValidation(t *testing.T) {
	s := newTestServer(t)
	owner, token := s.user(t, "owner")
	p := s.post(t, owner)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		detail string
	}{
		{"bad email", http.MethodPost, "/auth/register", "", gin.H{
			"email": "not-an-email", "password": "long-enough-password", "username": "x", "profile_type": "student",
		}, "email must be a valid email address"},
		{"short password", http.MethodPost, "/auth/register", "", gin.H{
			"email": "x@example.com", "password": "short", "username": "x", "profile_type": "student",
		}, "password must be at least 8 characters"},
		{"unknown profile type", http.MethodPost, "/auth/register", "", gin.H{
			"email": "x@example.com", "password": "long-enough-password", "username": "x", "profile_type": "wizard",
		}, "profile_type must be one of: student, professional"},
		{"year out of range", http.MethodPost, "/auth/register", "", gin.H{
			"email": "x@example.com", "password": "long-enough-password", "username": "x", "profile_type": "student", "year_of_study": 11,
		}, "year_of_study must be at most 10"},
		{"missing comment body", http.MethodPost, "/comments/" + p.ID.String(), token, gin.H{}, "body is required"},
		{"long comment body", http.MethodPost, "/comments/" + p.ID.String(), token, gin.H{"body": strings.Repeat("é", 1001)}, "body must be at most 1000 characters"},
		{"blank comment body", http.MethodPost, "/comments/" + p.ID.String(), token, gin.H{"body": "   "}, "comment body must not be empty"},
		{"score above range", http.MethodPost, "/posts/" + p.ID.String() + "/rate", token, gin.H{"score": 6}, "score must be at most 5"},
		{"profile email", http.MethodPatch, "/users/me", token, gin.H{"email": "nope"}, "email must be a valid email address"},
		{"forgot password email", http.MethodPost, "/auth/forgot-password", "", gin.H{"email": ""}, "email is required"},
	}
	for _, tc := range cases {
		w := s.doJSON(tc.method, tc.path, tc.token, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.name)
		body := decodeError(t, w)
		assert.Equal(t, "invalid_input", body.Code, tc.name)
		assert.Equal(t, tc.detail, body.Detail, tc.name)
	}

	// a 1000 rune body is fine
	w := s.doJSON(http.MethodPost, "/comments/"+p.ID.String(), token, gin.H{"body": strings.Repeat("é", 1000)})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/auth/register", "", strings.NewReader(`{"email": 5}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestErrorDetailHidesInternals(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.user(t, "owner")
	_, other := s.user(t, "other")
	p := s.post(t, owner)

	w := s.do(http.MethodPost, "/posts/00000000-0000-0000-0000-000000000001/rate?score=3", other, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decodeError(t, w).Detail)

	w = s.do(http.MethodDelete, "/posts/"+p.ID.String(), other, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Detail)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts/"+p.ID.String()+"/rate?score=3", other, nil, "").Code)
	w = s.do(http.MethodPost, "/posts/"+p.ID.String()+"/rate?score=3", other, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already voted", decodeError(t, w).Detail)
}
