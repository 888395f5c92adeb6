package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/pipeline"
	"github.com/report-qa/cli/internal/rag"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) IngestFile(ctx context.Context, path, companyName string) (pipeline.IngestResult, error) {
	args := m.Called(ctx, path, companyName)
	return args.Get(0).(pipeline.IngestResult), args.Error(1)
}

func (m *mockService) IngestDirectory(ctx context.Context, dir string) (*pipeline.IngestReport, error) {
	args := m.Called(ctx, dir)
	if r := args.Get(0); r != nil {
		return r.(*pipeline.IngestReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Answer(ctx context.Context, text string, kind domain.Kind, sessionID string) rag.Result {
	args := m.Called(ctx, text, kind, sessionID)
	return args.Get(0).(rag.Result)
}

func (m *mockService) NewSession() string {
	return m.Called().String(0)
}

func (m *mockService) ClearSession(id string) {
	m.Called(id)
}

func (m *mockService) DeleteSession(id string) {
	m.Called(id)
}

func (m *mockService) ActiveSessionCount() int {
	return m.Called().Int(0)
}

func newTestServer(svc Service) http.Handler {
	gin.SetMode(gin.TestMode)
	return NewServer(svc, ":0").Handler()
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "response should be JSON: %s", w.Body.String())
	return w, out
}

func TestHealth(t *testing.T) {
	w, body := do(t, newTestServer(&mockService{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAskCreatesSession(t *testing.T) {
	svc := &mockService{}
	svc.On("NewSession").Return("s-1").Once()
	svc.On("Answer", mock.Anything, `"ACME" revenue?`, domain.KindNumber, "s-1").Return(rag.Result{
		Answer: domain.Answer{
			StepByStepAnalysis: "a",
			ReasoningSummary:   "b",
			RelevantPages:      []int{12},
			FinalAnswer:        1234500.0,
			References:         []domain.Reference{{PDFSHA1: "abc", PageIndex: 11}},
		},
	})

	w, body := do(t, newTestServer(svc), http.MethodPost, "/ask", "application/json",
		[]byte(`{"question": "\"ACME\" revenue?", "kind": "number"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", body["sessionId"])
	answer := body["answer"].(map[string]any)
	assert.Equal(t, 1234500.0, answer["final_answer"])
	assert.Equal(t, []any{12.0}, answer["relevant_pages"])
	ref := answer["references"].([]any)[0].(map[string]any)
	assert.Equal(t, "abc", ref["pdf_sha1"])
	assert.Equal(t, 11.0, ref["page_index"])
	svc.AssertExpectations(t)
}

func TestAskKeepsSessionAndReportsFailure(t *testing.T) {
	svc := &mockService{}
	svc.On("Answer", mock.Anything, "no scope", domain.KindString, "s-9").Return(rag.Result{
		Answer:  domain.Unavailable("company name not found in question", "processing failed"),
		Failure: &rag.Failure{Stage: rag.StageExtractScope, Err: domain.ErrScopeNotFound},
	})

	w, body := do(t, newTestServer(svc), http.MethodPost, "/ask", "application/json",
		[]byte(`{"question": "no scope", "sessionId": "s-9"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-9", body["sessionId"])
	answer := body["answer"].(map[string]any)
	assert.Equal(t, "N/A", answer["final_answer"])
	assert.Equal(t, "processing failed", answer["reasoning_summary"])
	svc.AssertNotCalled(t, "NewSession")
}

func TestAskValidation(t *testing.T) {
	svc := &mockService{}
	h := newTestServer(svc)

	w, _ := do(t, h, http.MethodPost, "/ask", "application/json", []byte(`{"kind": "number"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(t, h, http.MethodPost, "/ask", "application/json", []byte(`{"question": "q", "kind": "date"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "unknown question kind")
}

func TestUploadPDF(t *testing.T) {
	svc := &mockService{}
	var savedPath string
	svc.On("IngestFile", mock.Anything, mock.AnythingOfType("string"), "ACME").
		Run(func(args mock.Arguments) {
			savedPath = args.String(1)
			data, err := os.ReadFile(savedPath)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.4 fake", string(data))
		}).
		Return(pipeline.IngestResult{Chunks: 7}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "ACME 2023 Annual Report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w, body := do(t, newTestServer(svc), http.MethodPost, "/upload-pdf", mw.FormDataContentType(), buf.Bytes())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 7.0, body["chunks"])
	assert.Equal(t, "ACME 2023 Annual Report.pdf", body["filename"])
	assert.True(t, strings.HasSuffix(savedPath, ".pdf"))
	_, err = os.Stat(savedPath)
	assert.True(t, os.IsNotExist(err), "temp upload is removed")
}

func TestUploadPDFRejectsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sheet.xlsx")
	require.NoError(t, err)
	_, _ = part.Write([]byte("x"))
	require.NoError(t, mw.Close())

	w, _ := do(t, newTestServer(&mockService{}), http.MethodPost, "/upload-pdf", mw.FormDataContentType(), buf.Bytes())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadPDFByPath(t *testing.T) {
	svc := &mockService{}
	svc.On("IngestFile", mock.Anything, "/data/acme.pdf", "ACME").
		Return(pipeline.IngestResult{Skipped: true}, nil).Once()
	svc.On("IngestFile", mock.Anything, "/data/broken.pdf", "").
		Return(pipeline.IngestResult{}, errors.New("bad pdf")).Once()
	h := newTestServer(svc)

	w, body := do(t, h, http.MethodPost, "/upload-pdf-by-path?filePath=/data/acme.pdf&companyName=ACME", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["skipped"])
	assert.Equal(t, "document already ingested", body["message"])

	w, body = do(t, h, http.MethodPost, "/upload-pdf-by-path", "application/json", []byte(`{"filePath": "/data/broken.pdf"}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "bad pdf")
}

func TestProcessDirectory(t *testing.T) {
	svc := &mockService{}
	svc.On("IngestDirectory", mock.Anything, "/data").Return(&pipeline.IngestReport{
		Results:  []pipeline.IngestResult{{File: "a.pdf", Chunks: 3}, {File: "b.pdf", Skipped: true}},
		Failures: []pipeline.IngestFailure{{Path: "/data/c.pdf", Error: "bad"}},
	}, nil)

	w, body := do(t, newTestServer(svc), http.MethodPost, "/process-directory", "application/json", []byte(`{"directory": "/data"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["ingested"])
	assert.Equal(t, 1.0, body["skipped"])
	assert.Equal(t, 1.0, body["failed"])
}

func TestSessionRoutes(t *testing.T) {
	svc := &mockService{}
	svc.On("NewSession").Return("s-2")
	svc.On("ClearSession", "s-2").Once()
	svc.On("DeleteSession", "s-2").Once()
	svc.On("ActiveSessionCount").Return(3)
	h := newTestServer(svc)

	_, body := do(t, h, http.MethodPost, "/chat/new", "", nil)
	assert.Equal(t, "s-2", body["sessionId"])

	w, body := do(t, h, http.MethodDelete, "/chat/s-2/clear", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session history cleared", body["message"])

	w, body = do(t, h, http.MethodDelete, "/chat/s-2", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session deleted", body["message"])

	_, body = do(t, h, http.MethodGet, "/chat/stats", "", nil)
	assert.Equal(t, 3.0, body["activeSessions"])
	svc.AssertExpectations(t)
}
