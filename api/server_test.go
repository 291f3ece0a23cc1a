package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pressdesk/pressdesk/content"
	"github.com/pressdesk/pressdesk/execution"
	"github.com/pressdesk/pressdesk/llm"
	"github.com/pressdesk/pressdesk/storage"
	"github.com/pressdesk/pressdesk/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response *llm.Response
	err      error
}

func (s *stubCompleter) Complete(context.Context, llm.Request) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type stubUploader struct {
	fileID string
	err    error
}

func (s *stubUploader) UploadFile(context.Context, []byte, string, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.fileID, nil
}

type stubFetcher struct {
	doc *content.Document
	err error
}

func (s *stubFetcher) Fetch(context.Context, string) (*content.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type fixture struct {
	server    *Server
	handler   http.Handler
	registry  *task.Registry
	completer *stubCompleter
	uploader  *stubUploader
	fetcher   *stubFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kv := storage.NewMemory()
	registry := task.NewRegistry(kv)
	require.NoError(t, registry.ReplaceAll(context.Background(), nil))

	completer := &stubCompleter{response: &llm.Response{Content: "output"}}
	engine := execution.NewEngine(execution.NewStore(), registry, completer)

	uploader := &stubUploader{fileID: "file-1"}
	fetcher := &stubFetcher{doc: &content.Document{URL: "http://x", Title: "T", Markdown: "m"}}
	credentials := llm.NewStoredCredentials(kv, "")

	server := NewServer(engine, registry, uploader, credentials, fetcher)
	return &fixture{
		server:    server,
		handler:   server.Handler(),
		registry:  registry,
		completer: completer,
		uploader:  uploader,
		fetcher:   fetcher,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorBody](t, rec).Error.Kind
}

func (f *fixture) seedTask(t *testing.T, def task.Definition) {
	t.Helper()
	_, err := f.registry.Create(context.Background(), def)
	require.NoError(t, err)
}

func TestServer_ExecutionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, task.Definition{
		ID: "t1", Name: "Summarize", PromptTemplate: "Summarize: {{input_text}}", IsActive: true,
	})

	rec := f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{
		TaskID:    "t1",
		Title:     "My page",
		InputText: "Hello world",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[execution.Execution](t, rec)
	assert.Equal(t, execution.StatusCreated, created.Status)

	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	executed := decodeBody[execution.Execution](t, rec)
	assert.Equal(t, execution.StatusCompleted, executed.Status)
	require.NotNil(t, executed.OutputText)
	assert.Equal(t, "output", *executed.OutputText)

	rec = f.do(t, http.MethodGet, "/v1/executions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.completer.response = &llm.Response{Content: "revised"}
	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/refine", RefineRequest{
		RefinementRequest: "make shorter",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	refined := decodeBody[execution.Execution](t, rec)
	assert.Equal(t, "revised", *refined.OutputText)
	assert.NotNil(t, refined.RefinedAt)
}

func TestServer_CreateExecution_RequiresTaskID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{InputText: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, KindBadRequest, errorKind(t, rec))
}

func TestServer_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	// Unknown execution
	rec := f.do(t, http.MethodGet, "/v1/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, errorKind(t, rec))

	// Task deleted before execute
	rec = f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{TaskID: "ghost", InputText: "x"})
	created := decodeBody[execution.Execution](t, rec)
	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/execute", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindTaskNotFound, errorKind(t, rec))

	// Refine before output
	rec = f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{TaskID: "ghost", InputText: "x"})
	created = decodeBody[execution.Execution](t, rec)
	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/refine", RefineRequest{RefinementRequest: "r"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, KindInvalidState, errorKind(t, rec))
}

func TestServer_Execute_ProviderErrorMapsTo502(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, task.Definition{ID: "t1", Name: "n", PromptTemplate: "{{input_text}}", IsActive: true})
	f.completer.err = &llm.ProviderError{StatusCode: 429, Message: "rate limited"}

	rec := f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{TaskID: "t1", InputText: "x"})
	created := decodeBody[execution.Execution](t, rec)

	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/execute", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, KindProviderError, body.Error.Kind)
	assert.Equal(t, "rate limited", body.Error.Message)
}

func TestServer_Execute_MissingCredentialMapsTo401(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, task.Definition{ID: "t1", Name: "n", PromptTemplate: "{{input_text}}", IsActive: true})
	f.completer.err = &llm.MissingCredentialError{}

	rec := f.do(t, http.MethodPost, "/v1/executions", CreateExecutionRequest{TaskID: "t1", InputText: "x"})
	created := decodeBody[execution.Execution](t, rec)

	rec = f.do(t, http.MethodPost, "/v1/executions/"+created.ID+"/execute", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindMissingCredential, errorKind(t, rec))
}

func TestServer_UploadAttachment(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[UploadResponse](t, rec)
	assert.Equal(t, "file-1", resp.FileID)
}

func TestServer_UploadAttachment_ErrorMapsTo502(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = &llm.UploadError{StatusCode: 400, Message: "file too large"}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, KindUploadError, body.Error.Kind)
	assert.Equal(t, "file too large", body.Error.Message)
}

func TestServer_CreateTask_AppendsPlaceholder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/tasks", CreateTaskRequest{
		Name:           "Translate",
		PromptTemplate: "Translate this to French.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[task.Definition](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Contains(t, created.PromptTemplate, task.PlaceholderToken)
}

func TestServer_CreateTask_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/tasks", CreateTaskRequest{Name: "no prompt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tasks", CreateTaskRequest{PromptTemplate: "no name {{input_text}}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UpdateTask_PatchesNamedFields(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, task.Definition{
		ID: "t1", Name: "old", Description: "d", PromptTemplate: "p {{input_text}}", IsActive: true, Order: 1,
	})

	name := "renamed"
	inactive := false
	rec := f.do(t, http.MethodPatch, "/v1/tasks/t1", UpdateTaskRequest{
		Name:     &name,
		IsActive: &inactive,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeBody[task.Definition](t, rec)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.IsActive)
	// Untouched fields keep their values.
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, 1, updated.Order)
}

func TestServer_UpdateTask_Unknown(t *testing.T) {
	f := newFixture(t)
	name := "x"
	rec := f.do(t, http.MethodPatch, "/v1/tasks/ghost", UpdateTaskRequest{Name: &name})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindTaskNotFound, errorKind(t, rec))
}

func TestServer_SetAndListTasks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/v1/tasks", []task.Definition{
		{ID: "b", Name: "beta", PromptTemplate: "p", IsActive: true, Order: 1},
		{ID: "a", Name: "alpha", PromptTemplate: "p", IsActive: true, Order: 0},
		{ID: "c", Name: "hidden", PromptTemplate: "p", IsActive: false},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defs := decodeBody[[]task.Definition](t, rec)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].ID)
	assert.Equal(t, "b", defs[1].ID)
}

func TestServer_DeleteTask(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, task.Definition{ID: "t1", Name: "n", PromptTemplate: "p", IsActive: true})

	rec := f.do(t, http.MethodDelete, "/v1/tasks/t1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/tasks/t1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CredentialLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/credential", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[CredentialStatus](t, rec).Configured)

	rec = f.do(t, http.MethodPut, "/v1/credential", CredentialRequest{APIKey: "sk-test"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/credential", nil)
	status := decodeBody[CredentialStatus](t, rec)
	assert.True(t, status.Configured)
	// The key is never echoed back.
	assert.NotContains(t, rec.Body.String(), "sk-test")

	rec = f.do(t, http.MethodDelete, "/v1/credential", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/credential", nil)
	assert.False(t, decodeBody[CredentialStatus](t, rec).Configured)
}

func TestServer_FetchContent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/content/fetch", FetchContentRequest{URL: "http://example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody[content.Document](t, rec)
	assert.Equal(t, "T", doc.Title)

	rec = f.do(t, http.MethodPost, "/v1/content/fetch", FetchContentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.fetcher.err = fmt.Errorf("unreachable")
	rec = f.do(t, http.MethodPost, "/v1/content/fetch", FetchContentRequest{URL: "http://x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnsurePlaceholder(t *testing.T) {
	assert.Equal(t, "p\n\n"+task.PlaceholderToken, ensurePlaceholder("p"))
	assert.Equal(t, "p {{input_text}}", ensurePlaceholder("p {{input_text}}"))
	assert.Empty(t, ensurePlaceholder(""))
}
