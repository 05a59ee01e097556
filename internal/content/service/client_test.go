package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/cecsync/internal/content/domain"
	"github.com/allisson/cecsync/internal/errors"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Name:     "source",
		BaseURL:  server.URL,
		Username: "user",
		Password: "pass",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func assertBasicAuth(t *testing.T, r *http.Request) {
	t.Helper()
	username, password, ok := r.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", username)
	assert.Equal(t, "pass", password)
}

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "Success_HTTPS", baseURL: "https://cec.example.com/"},
		{name: "Success_HTTP", baseURL: "http://localhost:8085"},
		{name: "Error_Empty", baseURL: "", wantErr: true},
		{name: "Error_NoScheme", baseURL: "cec.example.com", wantErr: true},
		{name: "Error_UnsupportedScheme", baseURL: "ftp://cec.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(Config{Name: "destination", BaseURL: tt.baseURL}, logger)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrNotConfigured)
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestClient_SubmitExportJob(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, exportJobsPath, r.URL.Path)
			assertBasicAuth(t, r)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			items := body["items"].(map[string]any)
			assert.Equal(t, []any{"abc123"}, items["contentItems"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"jobId":"export-1"}`))
		})

		jobID, err := client.SubmitExportJob(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "export-1", jobID)
	})

	t.Run("Success_JobIDFromLocation", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", exportJobsPath+"/export-2")
			w.WriteHeader(http.StatusAccepted)
		})

		jobID, err := client.SubmitExportJob(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "export-2", jobID)
	})

	t.Run("Error_NoJobID", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})

		_, err := client.SubmitExportJob(context.Background(), "abc123")
		assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
	})

	t.Run("Error_APIError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"title":"Bad Request","detail":"item abc123 not found"}`))
		})

		_, err := client.SubmitExportJob(context.Background(), "abc123")
		var apiErr *domain.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "item abc123 not found", apiErr.Detail)
	})

	t.Run("Error_Transport", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		client, err := NewClient(Config{Name: "source", BaseURL: baseURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)

		_, err = client.SubmitExportJob(context.Background(), "abc123")
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.ErrorIs(t, err, errors.ErrUnavailable)
	})
}

func TestClient_SubmitImportJob(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, importJobsPath, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file-1", body["exportDocId"])
		assert.Equal(t, "repo1", body["repositoryId"])
		_, _ = w.Write([]byte(`{"id":"import-1"}`))
	})

	jobID, err := client.SubmitImportJob(context.Background(), "file-1", "repo1")
	require.NoError(t, err)
	assert.Equal(t, "import-1", jobID)
}

func TestClient_PublishItems(t *testing.T) {
	for _, operation := range []string{"publish", "unpublish"} {
		t.Run(operation, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, bulkItemsPath, r.URL.Path)
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, `id eq "i1" or id eq "i2"`, body["q"])
				operations := body["operations"].(map[string]any)
				assert.Contains(t, operations, operation)
				_, _ = w.Write([]byte(`{"jobId":"bulk-1"}`))
			})

			submit := client.PublishItems
			if operation == "unpublish" {
				submit = client.UnpublishItems
			}
			jobID, err := submit(context.Background(), "channel1", []string{"i1", "i2"})
			require.NoError(t, err)
			assert.Equal(t, "bulk-1", jobID)
		})
	}

	t.Run("Error_NoItems", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.PublishItems(context.Background(), "channel1", nil)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestClient_GetJobStatus(t *testing.T) {
	tests := []struct {
		name       string
		handle     jobDomain.Handle
		wantPath   string
		response   string
		wantStatus jobDomain.Status
		wantResult string
		wantError  string
	}{
		{
			name:       "Success_ExportSucceeded",
			handle:     jobDomain.Handle{ID: "export-1", Kind: jobDomain.KindExport},
			wantPath:   exportJobsPath + "/export-1",
			response:   `{"id":"export-1","status":"SUCCESS","percentageComplete":100,"downloadLink":[{"href":"/documents/file/export.zip"}]}`,
			wantStatus: jobDomain.StatusSuccess,
			wantResult: "/documents/file/export.zip",
		},
		{
			name:       "Success_ImportInProgress",
			handle:     jobDomain.Handle{ID: "import-1", Kind: jobDomain.KindImport},
			wantPath:   importJobsPath + "/import-1",
			response:   `{"id":"import-1","status":"INPROGRESS","percentageComplete":40}`,
			wantStatus: jobDomain.StatusInProgress,
		},
		{
			name:       "Success_ImportFailed",
			handle:     jobDomain.Handle{ID: "import-2", Kind: jobDomain.KindImport},
			wantPath:   importJobsPath + "/import-2",
			response:   `{"id":"import-2","status":"FAILED","errorDescription":"repository not found"}`,
			wantStatus: jobDomain.StatusFailed,
			wantError:  "repository not found",
		},
		{
			name:       "Success_BulkFailedWithErrorBlock",
			handle:     jobDomain.Handle{ID: "bulk-1", Kind: jobDomain.KindPublish},
			wantPath:   bulkItemsPath + "/bulk-1",
			response:   `{"id":"bulk-1","progress":"failed","error":{"detail":"channel is not targeted"}}`,
			wantStatus: jobDomain.StatusFailed,
			wantError:  "channel is not targeted",
		},
		{
			name:       "Success_BulkSucceeded",
			handle:     jobDomain.Handle{ID: "bulk-2", Kind: jobDomain.KindUnpublish},
			wantPath:   bulkItemsPath + "/bulk-2",
			response:   `{"id":"bulk-2","progress":"succeeded"}`,
			wantStatus: jobDomain.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				_, _ = w.Write([]byte(tt.response))
			})

			job, err := client.GetJobStatus(context.Background(), tt.handle)
			require.NoError(t, err)
			assert.Equal(t, tt.handle.ID, job.ID)
			assert.Equal(t, tt.handle.Kind, job.Kind)
			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Equal(t, tt.wantResult, job.Result)
			assert.Equal(t, tt.wantError, job.ErrorDescription)
		})
	}

	t.Run("Error_UnknownKind", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := client.GetJobStatus(context.Background(), jobDomain.Handle{ID: "x", Kind: "copy"})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("Error_MalformedBody", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		_, err := client.GetJobStatus(context.Background(), jobDomain.Handle{ID: "x", Kind: jobDomain.KindExport})
		assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
	})
}

func TestClient_DownloadArtifact(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/file/export.zip", r.URL.Path)
		assertBasicAuth(t, r)
		_, _ = w.Write([]byte("zip-bytes"))
	})

	body, err := client.DownloadArtifact(context.Background(), "/documents/file/export.zip")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	t.Run("Error_NotFound", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		_, err := client.DownloadArtifact(context.Background(), "/missing.zip")
		var apiErr *domain.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})

	t.Run("Error_EmptyLink", func(t *testing.T) {
		_, err := client.DownloadArtifact(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
	})
}

func TestClient_UploadArtifact(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, filesDataPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, `{"parentID":"self"}`, r.FormValue("jsonInputParameters"))

		file, header, err := r.FormFile("primaryFile")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "export.zip", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "zip-bytes", string(data))

		_, _ = w.Write([]byte(`{"id":"file-1"}`))
	})

	fileID, err := client.UploadArtifact(context.Background(), "export.zip", strings.NewReader("zip-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)

	t.Run("Error_Rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusInsufficientStorage)
		})
		_, err := client.UploadArtifact(context.Background(), "export.zip", strings.NewReader("zip-bytes"))
		var apiErr *domain.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInsufficientStorage, apiErr.StatusCode)
	})
}

func TestClient_DeleteArtifact(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, filesPath+"/file-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.DeleteArtifact(context.Background(), "file-1"))
}

func TestClient_DeleteItem(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, itemsPath+"/abc123", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})
		assert.NoError(t, client.DeleteItem(context.Background(), "abc123"))
	})

	t.Run("Error_RejectedWithMessage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"Item abc123 is referred by other items"}`))
		})

		err := client.DeleteItem(context.Background(), "abc123")
		var deleteErr *domain.DeleteError
		require.True(t, errors.As(err, &deleteErr))
		assert.Equal(t, "abc123", deleteErr.ItemID)
		assert.Equal(t, "Item abc123 is referred by other items", deleteErr.Message)
	})

	t.Run("Error_PlainTextMessage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal failure\n"))
		})

		err := client.DeleteItem(context.Background(), "abc123")
		var deleteErr *domain.DeleteError
		require.True(t, errors.As(err, &deleteErr))
		assert.Equal(t, "internal failure", deleteErr.Message)
	})
}
