package tee

import (
	"bytes"
	"net/http"
	"time"
)

// ResponseSaver is a wrapper around http.ResponseWriter that records the
// response status and body. It optionally writes the response through to
// the underlying http.ResponseWriter; with a nil writer it only buffers,
// so a caller can decide afterwards whether to replay or discard.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
	CreatedAt    time.Time
}

// NewResponseSaver returns a new ResponseSaver.
// If w is not nil, the response is tee'd to it in addition to the buffer.
func NewResponseSaver(w http.ResponseWriter) *ResponseSaver {
	return &ResponseSaver{
		CreatedAt: time.Now(),
		rw:        w,
		b:         &bytes.Buffer{},
		header:    http.Header{},
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	t.wroteHeaders = true
	t.status = statusCode
	if t.rw != nil {
		copyHeader(t.rw.Header(), t.header)
		t.rw.WriteHeader(statusCode)
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	if t.rw != nil {
		t.rw.Write(b)
	}
	return t.b.Write(b)
}

// StatusCode returns the status code of the response.
// It returns 200 when the handler never called WriteHeader explicitly.
func (t *ResponseSaver) StatusCode() int {
	if !t.wroteHeaders {
		return http.StatusOK
	}
	return t.status
}

// BytesWritten returns the number of body bytes recorded.
func (t *ResponseSaver) BytesWritten() int {
	return t.b.Len()
}

// Body returns the recorded response body.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// CopyTo replays the buffered response onto w.
// Only meaningful when the saver was created with a nil writer.
func (t *ResponseSaver) CopyTo(w http.ResponseWriter) error {
	copyHeader(w.Header(), t.header)
	w.WriteHeader(t.StatusCode())
	_, err := w.Write(t.b.Bytes())
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
