package delivery_gate

import (
	"bytes"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	contentSecurityPolicyTypes "github.com/Motmedel/csp_go/pkg/http/types/content_security_policy"
	"golang.org/x/net/html"
)

func isPolicyMeta(tokenizer *html.Tokenizer, hasAttr bool) bool {
	for hasAttr {
		var key, value []byte
		key, value, hasAttr = tokenizer.TagAttr()
		if string(key) == "http-equiv" &&
			strings.EqualFold(strings.TrimSpace(string(value)), contentSecurityPolicyTypes.HeaderName) {
			return true
		}
	}
	return false
}

// Elements that may only appear in head. A document that omits the head start
// tag opens it implicitly with the first of them.
var headElements = []string{"base", "link", "meta", "noscript", "script", "style", "title"}

// Elements whose content the tokenizer returns as text.
var rawTextElements = []string{"noscript", "script", "style", "title"}

// insertionOffset returns the offset after the policy meta element in head,
// else after the first meta element in head, else after the head start tag,
// else after the leading doctype, comments and html start tag. Head may be
// implied.
func insertionOffset(body []byte) int {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))

	offset := 0
	prologueOffset := 0
	inPrologue := true
	headOffset := -1
	metaOffset := -1
	inRawText := false

loop:
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}
		raw := tokenizer.Raw()
		offset += len(raw)

		switch tokenType {
		case html.DoctypeToken, html.CommentToken:
			if inPrologue {
				prologueOffset = offset
			}
		case html.TextToken:
			if inRawText {
				continue
			}
			if len(bytes.TrimSpace(raw)) != 0 {
				// Text opens body.
				break loop
			}
			if inPrologue {
				prologueOffset = offset
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			switch tagName := string(name); {
			case tagName == "html":
				if inPrologue {
					prologueOffset = offset
				}
			case tagName == "head":
				inPrologue = false
				if headOffset < 0 {
					headOffset = offset
				}
			case tagName == "meta":
				inPrologue = false
				if isPolicyMeta(tokenizer, hasAttr) {
					return offset
				}
				if metaOffset < 0 {
					metaOffset = offset
				}
			case slices.Contains(headElements, tagName):
				inPrologue = false
				inRawText = tokenType == html.StartTagToken && slices.Contains(rawTextElements, tagName)
			default:
				break loop
			}
		case html.EndTagToken:
			inRawText = false
			if name, _ := tokenizer.TagName(); string(name) == "head" || string(name) == "html" {
				break loop
			}
		}
	}

	switch {
	case metaOffset >= 0:
		return metaOffset
	case headOffset >= 0:
		return headOffset
	default:
		return prologueOffset
	}
}

// Inject inserts markup into an HTML document once.
func Inject(body []byte, markup string) []byte {
	offset := insertionOffset(body)

	result := make([]byte, 0, len(body)+len(markup))
	result = append(result, body[:offset]...)
	result = append(result, markup...)
	result = append(result, body[offset:]...)
	return result
}

func isHtml(header http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

func bodyAllowed(statusCode int) bool {
	return statusCode >= 200 && statusCode != http.StatusNoContent && statusCode != http.StatusNotModified
}

// policyResponseWriter sets the policy header and, for HTML responses,
// buffers the body so the report script can be inserted.
type policyResponseWriter struct {
	http.ResponseWriter
	policy   string
	markup   string
	inject   bool
	head     bool
	onInject func()

	wroteHeader bool
	statusCode  int
	buffering   bool
	buffer      bytes.Buffer
}

func (writer *policyResponseWriter) WriteHeader(statusCode int) {
	if writer.wroteHeader {
		return
	}
	writer.wroteHeader = true
	writer.statusCode = statusCode

	header := writer.ResponseWriter.Header()
	header.Set(contentSecurityPolicyTypes.HeaderName, writer.policy)

	if writer.inject && !writer.head && bodyAllowed(statusCode) && isHtml(header) && header.Get("Content-Encoding") == "" {
		writer.buffering = true
		return
	}

	writer.ResponseWriter.WriteHeader(statusCode)
}

func (writer *policyResponseWriter) Write(data []byte) (int, error) {
	if !writer.wroteHeader {
		writer.WriteHeader(http.StatusOK)
	}
	if writer.buffering {
		return writer.buffer.Write(data)
	}
	return writer.ResponseWriter.Write(data)
}

// Flush is a no-op while the body is buffered.
func (writer *policyResponseWriter) Flush() {
	if writer.buffering {
		return
	}
	if flusher, ok := writer.ResponseWriter.(http.Flusher); ok {
		if !writer.wroteHeader {
			writer.WriteHeader(http.StatusOK)
		}
		flusher.Flush()
	}
}

func (writer *policyResponseWriter) Unwrap() http.ResponseWriter {
	return writer.ResponseWriter
}

func (writer *policyResponseWriter) finish() {
	if !writer.wroteHeader {
		writer.WriteHeader(http.StatusOK)
	}
	if !writer.buffering {
		return
	}

	body := writer.buffer.Bytes()
	if len(body) != 0 {
		body = Inject(body, writer.markup)
		if writer.onInject != nil {
			writer.onInject()
		}
	}

	header := writer.ResponseWriter.Header()
	header.Set("Content-Length", strconv.Itoa(len(body)))
	writer.ResponseWriter.WriteHeader(writer.statusCode)
	_, _ = writer.ResponseWriter.Write(body)
}
