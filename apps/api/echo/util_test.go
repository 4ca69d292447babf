package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/njautech/schoolhub/apps/api/echo"
	"github.com/njautech/schoolhub/core/user"
	"github.com/njautech/schoolhub/testutil"
)

type app struct {
	*testutil.Env
	server *echoapi.Server
}

func setup(t *testing.T) *app {
	env := testutil.NewEnv(t)
	validate, translator := testutil.NewValidatorWithTranslator()

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          env.Conf,
		Logger:        env.Logger,
		Validate:      validate,
		Translator:    translator,
		Metrics:       echoapi.NewMetrics(prometheus.NewRegistry()),
		AuthSvc:       env.AuthSvc,
		UserSvc:       env.UserSvc,
		AssignmentSvc: env.AssignmentSvc,
		SubmissionSvc: env.SubmissionSvc,
		ReportSvc:     env.ReportSvc,
		DashboardSvc:  env.DashboardSvc,
	})
	return &app{Env: env, server: server}
}

type httpErr struct {
	Error struct {
		Status  int               `json:"status"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func newHTTPErr(status int, msg string) httpErr {
	var e httpErr
	e.Error.Status = status
	e.Error.Message = msg
	return e
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart submission with an optional file and comment.
func newUploadRequest(t *testing.T, path, token, fileName, contentType string, content []byte, comment string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart(): %v", err)
		}
		if _, err = part.Write(content); err != nil {
			t.Fatalf("part.Write(): %v", err)
		}
	}
	if comment != "" {
		if err := mw.WriteField("comment", comment); err != nil {
			t.Fatalf("WriteField(): %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("mw.Close(): %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (a *app) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *app) getToken(t *testing.T, usr user.User) string {
	token, err := a.Tokens.IssueAccess(usr.Actor())
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList(): %v", err)
	}
	return data
}

func decode(t *testing.T, r io.Reader, dest interface{}) {
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		t.Fatalf("decode(): %v", err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, a *app, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, a.serve(req, rec))
		})
	}
}
