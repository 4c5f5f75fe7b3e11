package http

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/careerboard/internal/audit"
	"github.com/sujalbistaa/careerboard/internal/auth"
	"github.com/sujalbistaa/careerboard/internal/config"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/relay"
	"github.com/sujalbistaa/careerboard/internal/upstream"
	"github.com/sujalbistaa/careerboard/internal/ws"
)

const (
	testSecret   = "test-secret-with-enough-entropy"
	testEmail    = "admin@example.com"
	testPassword = "hunter2"
	posting1JSON = `{"id":"1","branch":"Jakarta","title":"Barista","location":"Kemang","role":"Staff","type":"Full-time","requirements":["Friendly"],"image":"https://ik.imagekit.io/acme/a.png","link":"https://apply.example.com/1"}`
	posting2JSON = `{"id":"2","branch":"Bandung","title":"Cashier","location":"Dago","role":"Staff","type":"Part-time","requirements":["Careful"]}`
	listingJSON  = "[" + posting1JSON + "," + posting2JSON + "]"
)

type upstreamCall struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

// fakeUpstream serves the listing and single postings on GET and answers writes with a fixed
// reply, recording every call.
type fakeUpstream struct {
	mu          sync.Mutex
	calls       []upstreamCall
	writeStatus int
	writeBody   string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	f.mu.Unlock()

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/career":
			io.WriteString(w, listingJSON)
		case "/career/1":
			io.WriteString(w, posting1JSON)
		case "/career/2":
			io.WriteString(w, posting2JSON)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Career not found"}`)
		}
		return
	}
	status := f.writeStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, f.writeBody)
}

// writes returns the non-GET calls.
func (f *fakeUpstream) writes() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []upstreamCall
	for _, c := range f.calls {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

type testEnv struct {
	env      *Env
	router   *gin.Engine
	upstream *fakeUpstream
}

type envOption func(*Env, *config.Config)

func withUploader(u imagehost.Uploader) envOption {
	return func(e *Env, cfg *config.Config) {
		e.Relay = relay.New(e.Upstream, u, cfg.MaxImageBytes, zap.NewNop())
	}
}

func withLoginRate(rps float64) envOption {
	return func(e *Env, cfg *config.Config) { cfg.LoginRateRPS = rps }
}

func withSecret(secret string) envOption {
	return func(e *Env, cfg *config.Config) {
		cfg.AuthSecret = secret
		e.Codec = auth.NewCodec(secret)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fu := &fakeUpstream{}
	srv := httptest.NewServer(fu)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Env:           "development",
		CORSOrigin:    "*",
		AdminEmail:    testEmail,
		AdminPassword: testPassword,
		AuthSecret:    testSecret,
		UpstreamBase:  srv.URL,
		MaxImageBytes: 2 << 20,
		ImageHost:     config.ImageHostUpstream,
		LoginRateRPS:  math.Inf(1),
		WriteRateRPS:  math.Inf(1),
	}

	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	recorder := audit.NewRecorder(gdb, zap.NewNop())
	require.NoError(t, recorder.Migrate())

	client := upstream.NewClient(cfg.UpstreamBase, "tok", 5*time.Second, zap.NewNop())
	env := &Env{
		Config:      cfg,
		Codec:       auth.NewCodec(cfg.AuthSecret),
		Credentials: auth.Credentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		Upstream:    client,
		Relay:       relay.New(client, nil, cfg.MaxImageBytes, zap.NewNop()),
		Audit:       recorder,
		Hub:         ws.NewHub(zap.NewNop()),
		Logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(env, cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := gin.New()
	SetupRoutes(ctx, router, env)
	return &testEnv{env: env, router: router, upstream: fu}
}

func (te *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	te.router.ServeHTTP(rec, req)
	return rec
}

func (te *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := te.env.Codec.Issue(testEmail, auth.RoleAdmin)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

// signedToken builds a token with arbitrary timestamps.
func signedToken(t *testing.T, secret string, issued, expires time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testEmail,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: auth.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newClient(base string) *upstream.Client {
	return upstream.NewClient(base, "tok", 5*time.Second, zap.NewNop())
}
