package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	"github.com/yungbote/bloomquiz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	httpH "github.com/yungbote/bloomquiz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bloomquiz-backend/internal/http/middleware"
	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/platform/storage"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type apiFixture struct {
	router  *gin.Engine
	jobRepo repos.JobRunRepo
	hub     *realtime.Hub
	notify  services.JobNotifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn := testutil.DB(t)
	log := testutil.Logger(t)

	users := repos.NewUserRepo(conn, log)
	jobRepo := repos.NewJobRunRepo(conn, log)
	store, err := storage.NewLocalStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	hub := realtime.NewHub(log)
	notify := services.NewJobNotifier(log, hub, nil)

	auth := services.NewAuthService(conn, log, users, nil, services.AuthConfig{
		SecretKey:  "router-test-secret",
		BcryptCost: bcrypt.MinCost,
	})
	jobs := services.NewJobService(conn, log, jobRepo, 0)
	docs := services.NewDocumentService(log, store, jobs, services.DocumentConfig{})
	gen := services.NewGenerationService(log, jobs, 0)
	assessments := services.NewAssessmentService(log, repos.NewAssessmentRepo(conn, log))

	router := NewRouter(RouterConfig{
		Log:               log,
		Metrics:           observability.NewMetrics(),
		AuthHandler:       httpH.NewAuthHandler(auth),
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, auth),
		UserHandler:       httpH.NewUserHandler(services.NewUserService(conn, log, users)),
		AssessmentHandler: httpH.NewAssessmentHandler(assessments),
		JobHandler:        httpH.NewJobHandler(jobs),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, hub, jobs, time.Second),
		DocumentHandler:   httpH.NewDocumentHandler(docs, 1<<20),
		ChatHandler:       httpH.NewChatHandler(gen),
		HealthHandler:     httpH.NewHealthHandler(conn),
	})
	return &apiFixture{router: router, jobRepo: jobRepo, hub: hub, notify: notify}
}

func (f *apiFixture) do(t *testing.T, req *nethttp.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func jsonRequest(method, target string, v any) *nethttp.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// finish stands in for a worker completing the job.
func (f *apiFixture) finish(t *testing.T, jobID string, result string) {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	ok, err := f.jobRepo.UpdateFieldsIfStatus(dbc, uuid.MustParse(jobID), []string{types.JobStatusQueued}, map[string]interface{}{
		"status":   types.JobStatusFinished,
		"stage":    "done",
		"progress": 100,
		"result":   datatypes.JSON(result),
	})
	if err != nil || !ok {
		t.Fatalf("finish: ok=%v err=%v", ok, err)
	}
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	email := "ada-" + uuid.NewString()[:8] + "@example.com"
	rec, body := f.do(t, jsonRequest(nethttp.MethodPost, "/api/signup", map[string]string{
		"name": "Ada", "email": " " + strings.ToUpper(email), "password": "correct horse",
	}))
	if rec.Code != nethttp.StatusOK || body["email"] != email {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	rec, body = f.do(t, jsonRequest(nethttp.MethodPost, "/api/signup", map[string]string{
		"name": "Ada", "email": email, "password": "another one",
	}))
	if rec.Code != nethttp.StatusConflict || errorCode(body) != "duplicate_email" {
		t.Fatalf("duplicate signup: %d %s", rec.Code, rec.Body.String())
	}

	form := url.Values{"username": {email}, "password": {"correct horse"}}
	req := httptest.NewRequest(nethttp.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, body = f.do(t, req)
	token, _ := body["access_token"].(string)
	if rec.Code != nethttp.StatusOK || token == "" || body["token_type"] != "bearer" {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = f.do(t, jsonRequest(nethttp.MethodPost, "/api/login", map[string]string{
		"email": email, "password": "wrong",
	}))
	if rec.Code != nethttp.StatusUnauthorized || errorCode(body) != "invalid_credentials" {
		t.Fatalf("bad login: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(nethttp.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, body = f.do(t, req)
	if rec.Code != nethttp.StatusOK || body["name"] != "Ada" {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	rec, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/me", nil))
	if rec.Code != nethttp.StatusUnauthorized || errorCode(body) != "invalid_token" {
		t.Fatalf("anonymous me: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = f.do(t, jsonRequest(nethttp.MethodPost, "/api/forgot-password", map[string]string{"email": "nobody@example.com"}))
	if rec.Code != nethttp.StatusOK || body["message"] == "" {
		t.Fatalf("forgot: %d %s", rec.Code, rec.Body.String())
	}
	rec, body = f.do(t, jsonRequest(nethttp.MethodPost, "/api/reset-password", map[string]string{
		"token": "not-a-token", "new_password": "whatever123",
	}))
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_token" {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(nethttp.MethodGet, "/api/assessments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, body = f.do(t, req)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("assessments: %d %s", rec.Code, rec.Body.String())
	}
	req = httptest.NewRequest(nethttp.MethodGet, "/api/assessments/99", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ = f.do(t, req)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("foreign assessment: %d", rec.Code)
	}
}

func TestChatAndJobStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, httptest.NewRequest(nethttp.MethodPost, "/chat?query=cells&collection_name=doc_abc&blooms_requirements=2+ponder", nil))
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_quota" {
		t.Fatalf("bad quota: %d %s", rec.Code, rec.Body.String())
	}
	rec, body = f.do(t, httptest.NewRequest(nethttp.MethodPost, "/chat?query=cells&collection_name=doc_abc&top_k=x", nil))
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad top_k: %d", rec.Code)
	}

	rec, body = f.do(t, httptest.NewRequest(nethttp.MethodPost, "/chat?query=cells&collection_name=doc_abc&blooms_requirements=1+remember", nil))
	jobID, _ := body["job_id"].(string)
	if rec.Code != nethttp.StatusOK || body["status"] != "queued" || jobID == "" {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body.String())
	}

	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/job_status?job_id="+jobID, nil))
	if body["status"] != "queued" {
		t.Fatalf("job_status queued: %v", body)
	}
	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/job_status?job_id="+uuid.NewString(), nil))
	if v, ok := body["status"]; !ok || v != nil {
		t.Fatalf("unknown job_status: %v", body)
	}
	rec, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/jobs/"+uuid.NewString(), nil))
	if rec.Code != nethttp.StatusNotFound || errorCode(body) != "job_not_found" {
		t.Fatalf("unknown job: %d %s", rec.Code, rec.Body.String())
	}

	f.finish(t, jobID, `{"mcqs":[]}`)
	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/job_status?job_id="+jobID, nil))
	if body["status"] != "finished" || body["result"] == nil {
		t.Fatalf("job_status finished: %v", body)
	}
	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/jobs/"+jobID, nil))
	if body["status"] != "finished" || body["progress"] != float64(100) {
		t.Fatalf("api job: %v", body)
	}
}

func multipartUpload(t *testing.T, filename string, content []byte) *nethttp.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(content)
	_ = w.Close()
	req := httptest.NewRequest(nethttp.MethodPost, "/chunking", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestChunkingUploadAndStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, multipartUpload(t, "notes.txt", []byte("hello")))
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "not_pdf" {
		t.Fatalf("txt upload: %d %s", rec.Code, rec.Body.String())
	}
	rec, body = f.do(t, httptest.NewRequest(nethttp.MethodPost, "/chunking?doc_path=/srv/notes.pdf", nil))
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_request" {
		t.Fatalf("path mode should be disabled: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = f.do(t, multipartUpload(t, "notes.pdf", []byte("%PDF-1.4 fake")))
	jobID, _ := body["job_id"].(string)
	collection, _ := body["collection_name"].(string)
	if rec.Code != nethttp.StatusOK || body["status"] != "queued" || jobID == "" || !strings.HasPrefix(collection, "doc_") {
		t.Fatalf("pdf upload: %d %s", rec.Code, rec.Body.String())
	}

	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/chunking/status?job_id="+jobID, nil))
	if body["status"] != "queued" {
		t.Fatalf("chunking status queued: %v", body)
	}
	f.finish(t, jobID, `{"stored":true,"chunks":3}`)
	_, body = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/chunking/status?job_id="+jobID, nil))
	if body["status"] != "chunked" {
		t.Fatalf("chunking status finished: %v", body)
	}

	rec, _ = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/jobs/"+jobID+"/events", nil))
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "event: done") {
		t.Fatalf("events for finished job: %d %q", rec.Code, rec.Body.String())
	}
}

func TestJobEventsStreamsUntilTerminal(t *testing.T) {
	f := newAPIFixture(t)
	_, body := f.do(t, httptest.NewRequest(nethttp.MethodPost, "/chat?query=cells&collection_name=doc_abc", nil))
	jobID, _ := body["job_id"].(string)
	id := uuid.MustParse(jobID)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	go func() {
		for i := 0; i < 200 && f.hub.Subscribers(jobID) == 0; i++ {
			time.Sleep(10 * time.Millisecond)
		}
		job := &types.JobRun{ID: id, JobType: services.JobTypeGenerateAssessment, Status: types.JobStatusStarted}
		f.notify.JobProgress(job, "retrieve", 20, "Retrieving context")
		job.Status = types.JobStatusFailed
		f.notify.JobFailed(job, "generate", "model unavailable")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, srv.URL+"/api/jobs/"+jobID+"/events", nil)
	resp, err := nethttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "event: progress") || !strings.Contains(out, "event: failed") || !strings.Contains(out, "model unavailable") {
		t.Fatalf("stream body=%q", out)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)
	rec, _ := f.do(t, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	rec, _ = f.do(t, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
