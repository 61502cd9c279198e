package snapshot

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

const storedAtHeaderName = "Ppay-Stored-At"

// Snapshot is a fully buffered copy of an HTTP response, suitable for
// storing in a cache namespace and replaying later.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// The value of the clock when the snapshot was stored.
	StoredAt time.Time
}

// FromResponse buffers res into a snapshot.
// The response body is consumed and replaced with a replayable copy.
func FromResponse(res *http.Response) (*Snapshot, error) {
	var body []byte
	if res.Body != nil {
		var err error
		body, err = io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, err
		}
		res.Body = io.NopCloser(bytes.NewReader(body))
	}
	return &Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now(),
	}, nil
}

// Bytes returns the HTTP/1.1 wire representation of the snapshot,
// with the stored-at instant carried in an internal header.
func (s *Snapshot) Bytes() ([]byte, error) {
	res := http.Response{
		StatusCode:    s.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
	}
	res.Header.Set(storedAtHeaderName, strconv.FormatInt(s.StoredAt.Unix(), 10))
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromBytes parses the wire representation produced by Bytes.
func FromBytes(b []byte) (*Snapshot, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}
	if storedAt, err := strconv.ParseInt(res.Header.Get(storedAtHeaderName), 10, 64); err == nil {
		s.StoredAt = time.Unix(storedAt, 0)
	}
	s.Header.Del(storedAtHeaderName)
	return s, nil
}

// Clone returns an independent copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	body := make([]byte, len(s.Body))
	copy(body, s.Body)
	return &Snapshot{
		StatusCode: s.StatusCode,
		Header:     s.Header.Clone(),
		Body:       body,
		StoredAt:   s.StoredAt,
	}
}
