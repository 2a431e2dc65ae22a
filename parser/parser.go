// Package parser 는 업로드된 문서에서 평문 텍스트를 추출한다.
// 확장자로 형식을 고르고, 확장자가 없거나 모르는 값이면 내용으로 판별한다.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyText         = errors.New("no text found in document")
	ErrInvalidEncoding   = errors.New("text document is not valid UTF-8")
)

// ExtractionError 는 형식별 추출 실패를 감싼다.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Format == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + e.Format + ")"
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	".txt":  extractPlainText,
	".md":   extractPlainText,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".html": extractHTML,
	".htm":  extractHTML,
}

// Extract 는 fileName 과 data 로 형식을 판별해 텍스트를 반환한다. 결과는 앞뒤 공백이 제거된다.
// 실패하면 항상 *ExtractionError 를 반환한다.
func Extract(fileName string, data []byte) (string, error) {
	format := DetectFormat(fileName, data)
	fn, ok := extractors[format]
	if !ok {
		return "", &ExtractionError{Format: format, Err: ErrUnsupportedFormat}
	}

	text, err := fn(data)
	if err != nil {
		return "", &ExtractionError{Format: format, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ExtractionError{Format: format, Err: ErrEmptyText}
	}
	return text, nil
}

// DetectFormat 은 ".pdf" 같은 확장자 형태로 형식을 반환한다.
func DetectFormat(fileName string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := extractors[ext]; ok || ext == ".doc" {
		return ext
	}
	return mimetype.Detect(data).Extension()
}

func extractPlainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// extractPDF 는 손상된 입력에서 라이브러리가 panic 하는 경우도 에러로 바꾼다.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	// readability, trafilatura 순서로 본문을 찾고 둘 다 실패하면 전체 텍스트 노드를 사용한다.
	if article, err := readability.FromDocument(doc, nil); err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}
	if result, err := trafilatura.Extract(bytes.NewReader(data), trafilatura.Options{}); err == nil && strings.TrimSpace(result.ContentText) != "" {
		return result.ContentText, nil
	}
	return collectText(doc), nil
}

func collectText(doc *html.Node) string {
	var b strings.Builder

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}

	f(doc)
	return b.String()
}
