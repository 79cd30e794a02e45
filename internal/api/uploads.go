package api

import "context"

// PresignRequest asks the backend for a time-limited write credential.
// The upload endpoints use camelCase field names, unlike the chat endpoints.
type PresignRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// PresignResponse carries the storage write credential and the object key.
type PresignResponse struct {
	PresignedURL string `json:"presignedUrl"`
	Key          string `json:"key"`
}

// CompleteRequest confirms a finished storage write so the backend can
// persist the attachment record.
type CompleteRequest struct {
	Key      string `json:"key"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// PresignUpload performs step one of the upload flow.
func (c *Client) PresignUpload(ctx context.Context, req PresignRequest) (PresignResponse, error) {
	var out PresignResponse
	if err := c.post(ctx, "/uploads/presigned-url", req, &out); err != nil {
		return PresignResponse{}, err
	}
	return out, nil
}

// CompleteUpload performs step three of the upload flow and returns the
// persisted attachment descriptor.
func (c *Client) CompleteUpload(ctx context.Context, req CompleteRequest) (Media, error) {
	var out Media
	if err := c.post(ctx, "/uploads/complete", req, &out); err != nil {
		return Media{}, err
	}
	return out, nil
}
