package establisher

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoDocument       = errors.New("no document selected")
	ErrTooManyDocuments = errors.New("only one document can be uploaded at a time")
	ErrEmptyDocument    = errors.New("document is empty")
	ErrUnsupportedType  = errors.New("unsupported document type (supported: PDF, DOCX, DOC, TXT)")
)

// Document 는 업로드할 파일 하나다.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// acceptedTypes 는 확장자별 MIME 타입이다. 클라이언트 필터일 뿐이고 최종 판단은 백엔드가 한다.
var acceptedTypes = map[string]string{
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// AcceptedExtensions 는 허용 확장자 목록을 반환한다.
func AcceptedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".txt"}
}

// LoadDocument 는 경로의 파일을 읽어 Document 로 만든다. ContentType 은 확장자로 정한다.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	name := filepath.Base(path)
	return Document{
		Name:        name,
		ContentType: contentTypeFor(name),
		Data:        data,
	}, nil
}

// SelectDocument 는 단일 파일 정책을 적용한다.
// 여러 개가 선택되면 아무것도 업로드하지 않는다.
func SelectDocument(docs []Document) (Document, error) {
	switch len(docs) {
	case 0:
		return Document{}, ErrNoDocument
	case 1:
		return docs[0], nil
	default:
		return Document{}, ErrTooManyDocuments
	}
}

// Validate 는 업로드 전에 비어 있는지, 허용된 형식인지 확인한다.
func (d Document) Validate() error {
	if len(d.Data) == 0 {
		return ErrEmptyDocument
	}
	if !isAccepted(d) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, d.Name)
	}
	return nil
}

func isAccepted(d Document) bool {
	if _, ok := acceptedTypes[strings.ToLower(filepath.Ext(d.Name))]; ok {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(d.ContentType)
	if err != nil {
		return false
	}
	for _, t := range acceptedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

func contentTypeFor(name string) string {
	if t, ok := acceptedTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}
