package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/store"
)

// imageKitUploadResponse is the subset of the upload API response we use.
type imageKitUploadResponse struct {
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	FilePath string `json:"filePath"`
}

type imageKitError struct {
	Message string `json:"message"`
}

// ImageKitStore keeps uploaded documents on ImageKit.
type ImageKitStore struct {
	PrivateKey string
	UploadURL  string
	APIURL     string
	Folder     string
	Tags       []string

	Client *http.Client
}

func NewImageKitStore(privateKey, uploadURL, apiURL, folder string) *ImageKitStore {
	return &ImageKitStore{
		PrivateKey: privateKey,
		UploadURL:  uploadURL,
		APIURL:     strings.TrimRight(apiURL, "/"),
		Folder:     folder,
		Tags:       []string{"backend-upload"},
		Client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Store uploads data under name. ImageKit assigns a unique file name.
func (s *ImageKitStore) Store(ctx context.Context, data []byte, name string) (*store.StoredObject, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	fields := map[string]string{
		"fileName":          name,
		"useUniqueFileName": "true",
		"folder":            s.Folder,
	}
	if len(s.Tags) > 0 {
		fields["tags"] = strings.Join(s.Tags, ",")
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build upload body: %w", err)
		}
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.UploadURL, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.SetBasicAuth(s.PrivateKey, "")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagekit upload: %w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("imagekit upload: read response: %w: %w", apperr.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagekit upload: status %d %s: %w", resp.StatusCode, errorMessage(body), apperr.ErrUpstream)
	}

	var out imageKitUploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("imagekit upload: decode response: %w: %w", apperr.ErrUpstream, err)
	}
	if out.URL == "" || out.FileID == "" {
		return nil, fmt.Errorf("imagekit upload returned incomplete data: %w", apperr.ErrUpstream)
	}

	return &store.StoredObject{URL: out.URL, ExternalID: out.FileID, Name: out.Name}, nil
}

// Remove deletes a file by its ImageKit id.
func (s *ImageKitStore) Remove(ctx context.Context, externalID string) error {
	endpoint := fmt.Sprintf("%s/files/%s", s.APIURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.SetBasicAuth(s.PrivateKey, "")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("imagekit delete: %w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("imagekit file %s: %w", externalID, apperr.ErrNotFound)
	case resp.StatusCode >= 300:
		return fmt.Errorf("imagekit delete: status %d %s: %w", resp.StatusCode, errorMessage(body), apperr.ErrUpstream)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e imageKitError
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return ""
}
