package establisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat/cmd/docchat/httpclient"
	"doc-chat/dto"
)

type fakeUploader struct {
	resp  dto.UploadResponse
	err   error
	calls int
	last  string
}

func (f *fakeUploader) Upload(_ context.Context, fileName, _ string, _ []byte) (dto.UploadResponse, error) {
	f.calls++
	f.last = fileName
	return f.resp, f.err
}

func pdfDoc() Document {
	return Document{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestSubmitSuccessMapsResponseFields(t *testing.T) {
	up := &fakeUploader{resp: dto.UploadResponse{SessionID: "s1", FileName: "doc.pdf", TextLength: 10}}

	sess, err := New(up).Submit(context.Background(), pdfDoc())
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "s1", DisplayName: "doc.pdf"}, sess)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "doc.pdf", up.last)
}

func TestSubmitIncompleteResponseProducesNoSession(t *testing.T) {
	testCases := []struct {
		name string
		resp dto.UploadResponse
	}{
		{name: "missing session id", resp: dto.UploadResponse{FileName: "doc.pdf"}},
		{name: "missing file name", resp: dto.UploadResponse{SessionID: "s1"}},
		{name: "missing both", resp: dto.UploadResponse{Message: "ok"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			sess, err := New(&fakeUploader{resp: testCase.resp}).Submit(context.Background(), pdfDoc())
			assert.ErrorIs(t, err, ErrIncompleteSession)
			assert.Equal(t, Session{}, sess)
		})
	}
}

func TestSubmitMalformedBodyProducesNoSession(t *testing.T) {
	up := &fakeUploader{err: fmt.Errorf("decode: %w", httpclient.ErrMalformedResponse)}

	_, err := New(up).Submit(context.Background(), pdfDoc())
	assert.ErrorIs(t, err, ErrIncompleteSession)
}

func TestSubmitRejectedUsesBackendReason(t *testing.T) {
	testCases := []struct {
		name       string
		reason     string
		wantReason string
	}{
		{name: "backend reason", reason: "File name is required", wantReason: "File name is required"},
		{name: "no reason", reason: "", wantReason: DefaultRejectReason},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			up := &fakeUploader{err: &httpclient.HTTPError{StatusCode: http.StatusBadRequest, Reason: testCase.reason}}

			_, err := New(up).Submit(context.Background(), pdfDoc())

			var uploadErr *UploadError
			require.True(t, errors.As(err, &uploadErr))
			assert.Equal(t, UploadRejected, uploadErr.Kind)
			assert.Equal(t, testCase.wantReason, uploadErr.Reason)
			assert.Equal(t, testCase.wantReason, uploadErr.Error())
			assert.Equal(t, http.StatusBadRequest, uploadErr.StatusCode)
		})
	}
}

func TestSubmitTransportFailureIsNetworkError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	up := &fakeUploader{err: cause}

	_, err := New(up).Submit(context.Background(), pdfDoc())

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, UploadNetwork, uploadErr.Kind)
	assert.Equal(t, NetworkFailureMessage, uploadErr.Error())
	assert.ErrorIs(t, err, cause)
}

func TestSubmitValidatesBeforeUpload(t *testing.T) {
	testCases := []struct {
		name    string
		doc     Document
		wantErr error
	}{
		{name: "empty", doc: Document{Name: "a.txt"}, wantErr: ErrEmptyDocument},
		{name: "unsupported extension", doc: Document{Name: "a.png", ContentType: "image/png", Data: []byte{1}}, wantErr: ErrUnsupportedType},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			up := &fakeUploader{}
			_, err := New(up).Submit(context.Background(), testCase.doc)
			assert.ErrorIs(t, err, testCase.wantErr)
			assert.Zero(t, up.calls)
		})
	}
}

func TestValidateAcceptsByExtensionOrMIME(t *testing.T) {
	accepted := []Document{
		{Name: "notes.TXT", Data: []byte("x")},
		{Name: "paper.pdf", Data: []byte("x")},
		{Name: "contract.docx", Data: []byte("x")},
		{Name: "legacy.doc", Data: []byte("x")},
		{Name: "noext", ContentType: "text/plain; charset=utf-8", Data: []byte("x")},
		{Name: "blob", ContentType: "application/msword", Data: []byte("x")},
	}
	for _, doc := range accepted {
		assert.NoError(t, doc.Validate(), doc.Name)
	}

	rejected := Document{Name: "image", ContentType: "image/jpeg", Data: []byte("x")}
	assert.ErrorIs(t, rejected.Validate(), ErrUnsupportedType)
}

func TestSelectDocumentSingleFilePolicy(t *testing.T) {
	_, err := SelectDocument(nil)
	assert.ErrorIs(t, err, ErrNoDocument)

	doc, err := SelectDocument([]Document{pdfDoc()})
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", doc.Name)

	_, err = SelectDocument([]Document{pdfDoc(), pdfDoc()})
	assert.ErrorIs(t, err, ErrTooManyDocuments)
}

func TestLoadDocumentDetectsContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", doc.Name)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", doc.ContentType)
	assert.Equal(t, []byte("PK"), doc.Data)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
