package model

import (
	"encoding/json"
	"time"
)

// Wire types for the Git-LFS batch protocol. Nullable fields carry omitempty
// so absent values stay off the wire, as the protocol requires.

// LFS batch operations.
const (
	LFSOperationUpload   = "upload"
	LFSOperationDownload = "download"
)

// LFSObjectSpec identifies one object in a batch request.
type LFSObjectSpec struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// LFSRef names the ref a batch applies to. Informational only.
type LFSRef struct {
	Name string `json:"name"`
}

// LFSBatchRequest is the body of POST .../info/lfs/objects/batch.
type LFSBatchRequest struct {
	Operation string          `json:"operation"`
	Transfers []string        `json:"transfers,omitempty"`
	Ref       *LFSRef         `json:"ref,omitempty"`
	Objects   []LFSObjectSpec `json:"objects"`
	HashAlgo  string          `json:"hash_algo,omitempty"`
}

// LFSAction tells the client where and how to move bytes.
type LFSAction struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresIn int               `json:"expires_in,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// LFSObjectError is the per-object error stanza.
type LFSObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LFSBatchObject is the per-object response. An object with no actions and
// no error means the content is already present and the client may skip it.
type LFSBatchObject struct {
	OID           string                `json:"oid"`
	Size          int64                 `json:"size"`
	Authenticated *bool                 `json:"authenticated,omitempty"`
	Actions       map[string]*LFSAction `json:"actions,omitempty"`
	Error         *LFSObjectError       `json:"error,omitempty"`
}

// LFSBatchResponse is the top-level batch response.
type LFSBatchResponse struct {
	Transfer string           `json:"transfer"`
	Objects  []LFSBatchObject `json:"objects"`
	HashAlgo string           `json:"hash_algo"`
}

// ===== Multipart Completion =====

// MultipartPart is one completed part. Clients disagree on field casing, so
// unmarshalling accepts both {PartNumber, ETag} and {partNumber, etag}.
type MultipartPart struct {
	PartNumber int
	ETag       string
}

// UnmarshalJSON accepts both casings of the part fields.
func (p *MultipartPart) UnmarshalJSON(data []byte) error {
	var raw struct {
		PartNumberUC *int    `json:"PartNumber"`
		ETagUC       *string `json:"ETag"`
		PartNumberLC *int    `json:"partNumber"`
		ETagLC       *string `json:"etag"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.PartNumberUC != nil:
		p.PartNumber = *raw.PartNumberUC
	case raw.PartNumberLC != nil:
		p.PartNumber = *raw.PartNumberLC
	}
	switch {
	case raw.ETagUC != nil:
		p.ETag = *raw.ETagUC
	case raw.ETagLC != nil:
		p.ETag = *raw.ETagLC
	}
	return nil
}

// MarshalJSON always emits the S3 casing.
func (p MultipartPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PartNumber int    `json:"PartNumber"`
		ETag       string `json:"ETag"`
	}{p.PartNumber, p.ETag})
}

// LFSCompleteRequest is the body of POST .../info/lfs/complete[/{upload_id}].
type LFSCompleteRequest struct {
	OID      string          `json:"oid"`
	UploadID string          `json:"upload_id,omitempty"`
	Parts    []MultipartPart `json:"parts"`
}

// LFSVerifyRequest is the body of POST .../info/lfs/verify.
type LFSVerifyRequest struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// LFSObjectStatus reports the stored object after complete/verify.
type LFSObjectStatus struct {
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}
