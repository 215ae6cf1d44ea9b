// Package gitbridge serves read-only Git smart-HTTP (info/refs and
// upload-pack) on top of the versioned store. Each fetch synthesizes the
// branch head in memory as one Git commit: small files keep their bytes, LFS
// files become pointer text, and the pack is encoded straight from the
// in-memory storer. Pushes are not supported.
package gitbridge

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing/format/packfile"
	"github.com/go-git/go-git/v5/plumbing/format/pktline"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// UploadPackService is the only git service the bridge advertises.
const UploadPackService = "git-upload-pack"

// Domain implements the Git read bridge.
type Domain struct {
	store  outbound.VersionedStore
	cfg    *Config
	logger *zap.Logger
}

// NewDomain creates a new gitbridge domain.
func NewDomain(store outbound.VersionedStore, cfg *Config, logger *zap.Logger) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	return &Domain{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

func (d *Domain) storeName(r *model.Repository) string {
	return repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID)
}

func storeErr(err error, what string) error {
	switch {
	case stderrors.Is(err, outbound.ErrNotFound):
		return apperr.RevisionNotFound(what)
	case stderrors.Is(err, outbound.ErrConflict):
		return apperr.Conflict(what)
	default:
		return apperr.Upstream("versioned store request failed", err)
	}
}

// AdvertiseRefs renders the smart-HTTP refs advertisement for the default
// branch: the service header, HEAD with its symref capability, and the
// branch ref, all pointing at the synthesized head commit.
func (d *Domain) AdvertiseRefs(ctx context.Context, r *model.Repository) ([]byte, error) {
	snap, err := d.buildSnapshot(ctx, r)
	if err != nil {
		return nil, err
	}
	branchRef := "refs/heads/" + d.cfg.DefaultBranch

	adv := packp.NewAdvRefs()
	head := snap.head
	adv.Head = &head
	adv.References[branchRef] = snap.head
	if err := adv.Capabilities.Add(capability.SymRef, "HEAD:"+branchRef); err != nil {
		return nil, err
	}
	if err := adv.Capabilities.Add(capability.Agent, "kohakuhub"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := pktline.NewEncoder(&buf)
	if err := enc.Encode([]byte("# service=" + UploadPackService + "\n")); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	if err := adv.Encode(&buf); err != nil {
		return nil, err
	}

	d.logger.Debug("Advertised refs",
		zap.String("repo", r.FullID),
		zap.String("head", snap.head.String()),
		zap.Int("files", snap.files))
	return buf.Bytes(), nil
}

// UploadPack answers one fetch: it parses the client's wants, validates them
// against the snapshot, and replies NAK followed by a full pack. Haves are
// ignored, so every fetch is a clean clone of the head.
func (d *Domain) UploadPack(ctx context.Context, r *model.Repository, body io.Reader, out io.Writer) error {
	snap, err := d.buildSnapshot(ctx, r)
	if err != nil {
		return err
	}

	req := packp.NewUploadPackRequest()
	if err := req.Decode(body); err != nil {
		return apperr.BadRequest(fmt.Sprintf("malformed upload-pack request: %v", err))
	}
	for _, want := range req.Wants {
		if !snap.has(want) {
			return apperr.BadRequest(fmt.Sprintf("unknown object %s", want))
		}
	}

	enc := pktline.NewEncoder(out)
	if err := enc.Encode([]byte("NAK\n")); err != nil {
		return fmt.Errorf("writing NAK: %w", err)
	}

	// Window 0 turns delta compression off; zlib on the object bodies is
	// plenty for snapshot fetches and keeps encoding single-pass.
	encoder := packfile.NewEncoder(out, snap.storer, false)
	if _, err := encoder.Encode(snap.objects, 0); err != nil {
		return fmt.Errorf("encoding pack: %w", err)
	}

	d.logger.Info("Served upload-pack",
		zap.String("repo", r.FullID),
		zap.String("head", snap.head.String()),
		zap.Int("objects", len(snap.objects)))
	return nil
}
