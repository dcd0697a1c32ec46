package sessionpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"
)

// FileInfo describes a file stored in a remote session under MountPath.
type FileInfo struct {
	Name         string    `json:"filename"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModifiedTime"`
}

// fileListResponse is the wire form of a file listing.
type fileListResponse struct {
	Value []struct {
		Properties FileInfo `json:"properties"`
	} `json:"value"`
}

type fileUploadResponse struct {
	Value []struct {
		Properties FileInfo `json:"properties"`
	} `json:"value"`
}

// UploadFile streams r into the session's mount path under name. Code running
// in the session afterwards sees the file at path.Join(MountPath, name) with
// identical contents.
func (s *Session) UploadFile(ctx context.Context, name string, r io.Reader) (FileInfo, error) {
	// The multipart body is buffered once so retries can replay it.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return FileInfo{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return FileInfo{}, fmt.Errorf("copy upload contents: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	rawURL := s.client.buildURL(s.Identifier(), "files", "upload")
	body := buf.Bytes()
	respBody, err := s.client.do(ctx, http.MethodPost, rawURL, mw.FormDataContentType(), func() (io.Reader, error) {
		return bytes.NewReader(body), nil
	})
	if err != nil {
		return FileInfo{}, err
	}

	var resp fileUploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return FileInfo{}, fmt.Errorf("decode upload response: %w", err)
	}
	if len(resp.Value) == 0 {
		return FileInfo{Name: name}, nil
	}
	return resp.Value[0].Properties, nil
}

// DownloadFile fetches the named file from the session's mount path.
func (s *Session) DownloadFile(ctx context.Context, name string) ([]byte, error) {
	rawURL := s.client.buildURL(s.Identifier(), "files", "content", url.PathEscape(name))
	return s.client.do(ctx, http.MethodGet, rawURL, "", nil)
}

// ListFiles enumerates files currently present under the session's mount path.
func (s *Session) ListFiles(ctx context.Context) ([]FileInfo, error) {
	rawURL := s.client.buildURL(s.Identifier(), "files")
	respBody, err := s.client.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return nil, err
	}
	var resp fileListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	infos := make([]FileInfo, 0, len(resp.Value))
	for _, v := range resp.Value {
		infos = append(infos, v.Properties)
	}
	return infos, nil
}

// MountedPath returns the absolute path a file named name has inside the
// session's interpreter context.
func MountedPath(name string) string { return path.Join(MountPath, name) }
