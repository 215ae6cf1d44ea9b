package gitbridge

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

const (
	gitAttributesPath = ".gitattributes"
	lfsConfigPath     = ".lfsconfig"
)

// snapshot is one branch head rendered as Git objects. Everything lives in
// an in-memory storer; nothing touches disk and LFS content is never
// downloaded, only its pointer text.
type snapshot struct {
	storer  *memory.Storage
	head    plumbing.Hash
	objects []plumbing.Hash
	files   int

	seen map[plumbing.Hash]struct{}
}

func newSnapshot() *snapshot {
	return &snapshot{
		storer: memory.NewStorage(),
		seen:   map[plumbing.Hash]struct{}{},
	}
}

// has reports whether a hash is part of the snapshot.
func (s *snapshot) has(h plumbing.Hash) bool {
	_, ok := s.seen[h]
	return ok
}

func (s *snapshot) record(h plumbing.Hash) {
	if _, ok := s.seen[h]; ok {
		return
	}
	s.seen[h] = struct{}{}
	s.objects = append(s.objects, h)
}

// putBlob stores raw bytes as a Git blob.
func (s *snapshot) putBlob(data []byte) (plumbing.Hash, error) {
	obj := s.storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	s.record(h)
	return h, nil
}

// treeNode accumulates one directory level before encoding.
type treeNode struct {
	blobs map[string]plumbing.Hash
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{
		blobs: map[string]plumbing.Hash{},
		dirs:  map[string]*treeNode{},
	}
}

func (n *treeNode) insert(p string, h plumbing.Hash) {
	dir, rest, nested := strings.Cut(p, "/")
	if !nested {
		n.blobs[p] = h
		return
	}
	child := n.dirs[dir]
	if child == nil {
		child = newTreeNode()
		n.dirs[dir] = child
	}
	child.insert(rest, h)
}

// write encodes the node and its subtrees bottom-up, returning the node's
// tree hash. Entries follow Git's ordering, where directory names compare
// as if they carried a trailing slash.
func (n *treeNode) write(s *snapshot) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.blobs)+len(n.dirs))
	for name, h := range n.blobs {
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: h})
	}
	for name, child := range n.dirs {
		h, err := child.write(s)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})

	tree := &object.Tree{Entries: entries}
	obj := s.storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	s.record(h)
	return h, nil
}

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// buildSnapshot renders the branch head of one repository as a single Git
// commit over the full file listing. Small files carry their real bytes;
// LFS files carry pointer text, with .gitattributes and .lfsconfig injected
// when the repository does not provide its own.
func (d *Domain) buildSnapshot(ctx context.Context, r *model.Repository) (*snapshot, error) {
	name := d.storeName(r)
	branch := d.cfg.DefaultBranch

	headID, err := d.store.GetBranchHead(ctx, name, branch)
	if err != nil {
		return nil, storeErr(err, branch)
	}
	rec, err := d.store.GetCommit(ctx, name, headID)
	if err != nil {
		return nil, storeErr(err, headID)
	}

	snap := newSnapshot()
	root := newTreeNode()
	var lfsPaths []string
	hasAttributes := false
	hasLFSConfig := false

	after := ""
	for {
		page, err := d.store.ListObjects(ctx, name, headID, outbound.ListOptions{
			After:  after,
			Amount: d.cfg.ListPageSize,
		})
		if err != nil {
			return nil, storeErr(err, headID)
		}
		for i := range page.Objects {
			stat := &page.Objects[i]
			if stat.PathType != outbound.PathTypeObject {
				continue
			}
			switch stat.Path {
			case gitAttributesPath:
				hasAttributes = true
			case lfsConfigPath:
				hasLFSConfig = true
			}

			data, isLFS, err := d.blobContent(ctx, name, headID, stat)
			if err != nil {
				return nil, err
			}
			if isLFS {
				lfsPaths = append(lfsPaths, stat.Path)
			}
			h, err := snap.putBlob(data)
			if err != nil {
				return nil, err
			}
			root.insert(stat.Path, h)
			snap.files++
		}
		if !page.HasMore {
			break
		}
		after = page.NextAfter
	}

	if len(lfsPaths) > 0 && !hasAttributes {
		h, err := snap.putBlob(renderGitAttributes(lfsPaths))
		if err != nil {
			return nil, err
		}
		root.insert(gitAttributesPath, h)
		snap.files++
	}
	if !hasLFSConfig {
		h, err := snap.putBlob(d.renderLFSConfig(r))
		if err != nil {
			return nil, err
		}
		root.insert(lfsConfigPath, h)
		snap.files++
	}

	rootHash, err := root.write(snap)
	if err != nil {
		return nil, err
	}
	head, err := d.writeCommit(snap, rec, rootHash)
	if err != nil {
		return nil, err
	}
	snap.head = head
	return snap, nil
}

// blobContent returns the Git blob bytes for one stored object: LFS content
// becomes pointer text without touching the blob store, everything else is
// downloaded at the pinned commit.
func (d *Domain) blobContent(ctx context.Context, name, ref string, stat *outbound.ObjectStat) ([]byte, bool, error) {
	if key, ok := model.BlobKeyFromAddress(stat.PhysicalAddress); ok && model.IsLFSKey(key) {
		oid := path.Base(key)
		return []byte(model.LFSPointer(oid, stat.SizeBytes)), true, nil
	}
	data, err := d.store.GetObject(ctx, name, ref, stat.Path)
	if err != nil {
		return nil, false, storeErr(err, stat.Path)
	}
	return data, false, nil
}

func renderGitAttributes(lfsPaths []string) []byte {
	sorted := make([]string, len(lfsPaths))
	copy(sorted, lfsPaths)
	sort.Strings(sorted)

	var b strings.Builder
	for _, p := range sorted {
		fmt.Fprintf(&b, "%s filter=lfs diff=lfs merge=lfs -text\n", p)
	}
	return []byte(b.String())
}

func (d *Domain) renderLFSConfig(r *model.Repository) []byte {
	prefix := d.cfg.BaseURL
	if r.RepoType != model.RepoTypeModel {
		prefix += "/" + r.RepoType.Plural()
	}
	return []byte(fmt.Sprintf("[lfs]\n\turl = %s/%s.git/info/lfs\n", prefix, r.FullID))
}

// writeCommit encodes the snapshot commit. Parents are intentionally empty:
// the bridge serves the head as a single-commit history, the full log stays
// behind the hub API.
func (d *Domain) writeCommit(s *snapshot, rec *outbound.CommitRecord, root plumbing.Hash) (plumbing.Hash, error) {
	who := rec.Committer
	if who == "" {
		who = "kohakuhub"
	}
	sig := object.Signature{
		Name:  who,
		Email: who + "@" + d.cfg.EmailDomain,
		When:  rec.CreationDate,
	}
	message := rec.Message
	if message == "" {
		message = "Snapshot"
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}

	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  root,
	}
	obj := s.storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	s.record(h)
	return h, nil
}
