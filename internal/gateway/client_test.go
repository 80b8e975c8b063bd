package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receivables-conciliation-backend/internal/conciliation"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestUpload_FirstFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadPath, r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "receivables.csv", hdr.Filename)
		assert.Equal(t, "cnpj;valor\n", string(content))
		assert.Empty(t, r.FormValue("session_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"session_token": "abc123",
			"summary": {"receivables_count": 2, "payments_count": 0, "errors": [{"row": 4, "error": "invalid date"}]},
			"receivables": [{"debtor_cnpj": "12.345.678/0001-90", "debtor_name": "ACME", "face_value": 1500.5, "due_date": "2024-03-10", "status": "open"}],
			"payments": []
		}`)
	})

	res, err := c.Upload(context.Background(), conciliation.File{Name: "receivables.csv", Content: strings.NewReader("cnpj;valor\n")}, "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.SessionToken)
	assert.Equal(t, 2, res.Summary.ReceivablesCount)
	require.Len(t, res.Summary.Errors, 1)
	assert.Equal(t, 4, res.Summary.Errors[0].Row)
	require.Len(t, res.Receivables, 1)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(res.Receivables[0].FaceValue))
}

func TestUpload_ReusesSessionToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "abc123", r.FormValue("session_token"))
		_, _ = io.WriteString(w, `{"session_token": "abc123", "summary": {"receivables_count": 0, "payments_count": 3, "errors": []}}`)
	})

	res, err := c.Upload(context.Background(), conciliation.File{Name: "extrato.ofx", Content: strings.NewReader("OFX")}, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.PaymentsCount)
}

func TestUpload_ErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail": "Unsupported file type: .pdf"}`)
	})

	_, err := c.Upload(context.Background(), conciliation.File{Name: "a.pdf", Content: strings.NewReader("x")}, "")
	var gwErr *conciliation.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "upload", gwErr.Op)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "Unsupported file type: .pdf", conciliation.UserMessage(err, conciliation.MsgUploadFailed))
}

func TestUpload_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})
	_, err := c.Upload(context.Background(), conciliation.File{Name: "empty.csv"}, "")
	assert.Error(t, err)
}

func TestConciliate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, conciliatePath, r.URL.Path)
		assert.Equal(t, "tok/+=", r.URL.Query().Get("session_token"))

		_, _ = io.WriteString(w, `{
			"run_id": "run-9",
			"summary": {"total_receivables": 2, "total_payments": 1, "matched": 1, "unmatched_receivables": 1, "unmatched_payments": 0, "match_rate": "50.0"},
			"matches": [{"receivable_id": "r1", "payment_id": "p1", "debtor_cnpj": null, "debtor_name": "ACME",
				"payer_name": "ACME LTDA", "receivable_value": "100.00", "payment_value": "99.90",
				"due_date": "2024-03-01", "payment_date": "2024-03-02", "confidence": 85}],
			"unmatched_receivables": [{"id": "r2", "debtor_cnpj": "1", "debtor_name": null, "face_value": "250.00", "due_date": null}],
			"unmatched_payments": []
		}`)
	})

	res, err := c.Conciliate(context.Background(), "tok/+=")
	require.NoError(t, err)
	assert.Equal(t, "run-9", res.RunID)
	assert.Equal(t, 1, res.Summary.MatchedCount)
	assert.True(t, decimal.RequireFromString("50").Equal(res.Summary.MatchRate))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 85, res.Matches[0].Confidence)
	assert.Nil(t, res.Matches[0].DebtorTaxID)
	require.Len(t, res.UnmatchedReceivables, 1)
	assert.False(t, res.UnmatchedReceivables[0].DueDate.Present())
}

func TestConciliate_SessionNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "Session not found"}`)
	})

	_, err := c.Conciliate(context.Background(), "gone")
	assert.Equal(t, "Session not found", conciliation.UserMessage(err, conciliation.MsgConciliateFailed))
}

func TestConciliate_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.Conciliate(context.Background(), "tok")
	assert.ErrorIs(t, err, conciliation.ErrInvalidPayload)
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.Conciliate(context.Background(), "tok")
	var gwErr *conciliation.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Zero(t, gwErr.StatusCode)
	assert.Equal(t, conciliation.MsgServiceUnreachable, conciliation.UserMessage(err, "x"))
	assert.NotNil(t, errors.Unwrap(err))
}

func TestExport(t *testing.T) {
	const csv = "Status;Devedor CNPJ\nConciliado;123\n"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, exportPath, r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("session_token"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, csv)
	})

	assert.True(t, strings.HasSuffix(c.ExportURL("tok"), exportPath+"?session_token=tok"))

	var buf bytes.Buffer
	n, err := c.Export(context.Background(), "tok", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(csv)), n)
	assert.Equal(t, csv, buf.String())
}

func TestAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case registerPath:
			var reg conciliation.Registration
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
			assert.Equal(t, "Acme", reg.Name)
			require.NotNil(t, reg.SessionToken)
			assert.Equal(t, "anon", *reg.SessionToken)
			_, _ = io.WriteString(w, `{"token": "jwt-1", "user": {"id": "u1", "email": "a@b.c", "name": "Acme", "organization_id": "o1", "plan": "trial"},
				"linked_data": {"receivables": 3, "payments": 2}}`)
		case loginPath:
			var creds conciliation.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"detail": "Email ou senha incorretos"}`)
				return
			}
			_, _ = io.WriteString(w, `{"token": "jwt-2", "user": {"id": "u1", "email": "a@b.c", "name": "Acme", "organization_id": "o1", "plan": "trial"}}`)
		case mePath:
			assert.Equal(t, "Bearer jwt-2", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"id": "u1", "email": "a@b.c", "name": "Acme", "organization_id": "o1", "plan": "pro"}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	anon := "anon"
	reg, err := c.Register(ctx, conciliation.Registration{Name: "Acme", Email: "a@b.c", Password: "secret", SessionToken: &anon})
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", reg.Token)
	require.NotNil(t, reg.LinkedData)
	assert.Equal(t, 3, reg.LinkedData.Receivables)

	_, err = c.Login(ctx, conciliation.Credentials{Email: "a@b.c", Password: "wrong"})
	assert.Equal(t, "Email ou senha incorretos", conciliation.UserMessage(err, conciliation.MsgAuthFailed))

	login, err := c.Login(ctx, conciliation.Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Nil(t, login.LinkedData)

	user, err := c.Me(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "pro", user.Plan)
}
