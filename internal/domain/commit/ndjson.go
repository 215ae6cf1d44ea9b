package commit

import "encoding/json"

// operationEnvelope is one NDJSON line: a key naming the operation and its
// payload. Lines with unknown keys are ignored so newer clients keep
// working.
type operationEnvelope struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// header is the mandatory first line of a commit body.
type header struct {
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	ParentCommit string `json:"parentCommit"`
}

// fileOp carries inline content, base64-encoded.
type fileOp struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// lfsFileOp references content already uploaded to the blob store.
type lfsFileOp struct {
	Path string `json:"path"`
	Algo string `json:"algo"`
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

type deletedFileOp struct {
	Path string `json:"path"`
}

type deletedFolderOp struct {
	Path string `json:"path"`
}

// copyFileOp duplicates srcPath at path without moving bytes.
type copyFileOp struct {
	Path        string `json:"path"`
	SrcPath     string `json:"srcPath"`
	SrcRevision string `json:"srcRevision"`
}
