// Package memory is a reference, in-process implementation of the
// dataserver.Server contract, backed by plain Go maps. It exists as a
// conformance fixture and for tests; production deployments are expected
// to supply their own backing store.
package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethdenver2026/gateway/bpath"
	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/dataserver"
)

// fileNode is a single file entry within a directory hash.
type fileNode struct {
	entry    string
	data     string
	created  int64
	modified int64
}

// dirNode is one directory hash's bookkeeping: its own timestamps plus its
// children keyed by entry name.
type dirNode struct {
	created  int64
	modified int64
	children map[string]*fileNode
}

// bubble is the per-contract storage root. A hash is either a directory
// (in dirs, with its own children) or a top-level file (in files) — never
// both; the ACC's permission bits decide which before any request reaches
// the store.
type bubble struct {
	dirs  map[string]*dirNode // keyed by lowercase 0x hash
	files map[string]*fileNode
}

type subscription struct {
	contract string
	hash     string
	entry    string // "" when subscribed to the directory itself
	listener dataserver.Listener
}

// Store is the in-memory dataserver.Server implementation.
type Store struct {
	mu       sync.Mutex
	bubbles  map[string]*bubble
	subs     map[string]*subscription
	nowMilli func() int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		bubbles:  make(map[string]*bubble),
		subs:     make(map[string]*subscription),
		nowMilli: func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *Store) now() int64 { return s.nowMilli() }

func (s *Store) getBubble(contract string) (*bubble, error) {
	b, ok := s.bubbles[contract]
	if !ok {
		return nil, bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	return b, nil
}

// Create instantiates a new bubble (its root directory) for contract.
func (s *Store) Create(_ context.Context, contract string, opts dataserver.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bubbles[contract]; exists {
		if opts.Silent {
			return nil
		}
		return bubbleerr.New(bubbleerr.CodeAlreadyExists, "bubble already exists")
	}

	now := s.now()
	s.bubbles[contract] = &bubble{
		dirs: map[string]*dirNode{
			bpath.ZeroHash: {created: now, modified: now, children: make(map[string]*fileNode)},
		},
		files: make(map[string]*fileNode),
	}
	return nil
}

func splitPath(path string) (hash, entry string, err error) {
	p, err := bpath.Parse(path)
	if err != nil {
		return "", "", err
	}
	return p.Hash(), p.Entry(), nil
}

func (s *Store) ensureDir(b *bubble, hash string) *dirNode {
	d, ok := b.dirs[hash]
	if !ok {
		now := s.now()
		d = &dirNode{created: now, modified: now, children: make(map[string]*fileNode)}
		b.dirs[hash] = d
	}
	return d
}

// Write overwrites (or creates) the file at path, auto-creating its parent
// directory hash if absent.
func (s *Store) Write(_ context.Context, contract, path, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	hash, entry, err := splitPath(path)
	if err != nil {
		return err
	}
	if entry == "" {
		return s.writeRootFile(b, contract, hash, data)
	}

	dir := s.ensureDir(b, hash)
	now := s.now()
	if existing, ok := dir.children[entry]; ok {
		existing.data = data
		existing.modified = now
	} else {
		dir.children[entry] = &fileNode{entry: entry, data: data, created: now, modified: now}
	}

	s.notifyFile(contract, hash, entry, dataserver.EventWrite, dir.children[entry])
	s.notifyDir(contract, hash, dataserver.EventWrite, []*fileNode{dir.children[entry]})
	return nil
}

// writeRootFile handles a write whose path names a bare hash rather than
// hash/entry — the hash itself is a non-directory file, per the ACC's
// permission classification.
func (s *Store) writeRootFile(b *bubble, contract, hash, data string) error {
	if hash == bpath.ZeroHash {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "cannot write the bubble root as a file")
	}
	if _, isDir := b.dirs[hash]; isDir {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "path is a directory")
	}

	now := s.now()
	node, ok := b.files[hash]
	if ok {
		node.data = data
		node.modified = now
	} else {
		node = &fileNode{data: data, created: now, modified: now}
		b.files[hash] = node
	}

	s.notifyRootFile(contract, hash, dataserver.EventWrite, node)
	return nil
}

// Append extends (or creates) the file at path with data.
func (s *Store) Append(_ context.Context, contract, path, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	hash, entry, err := splitPath(path)
	if err != nil {
		return err
	}
	if entry == "" {
		return s.appendRootFile(b, contract, hash, data)
	}

	dir := s.ensureDir(b, hash)
	now := s.now()
	node, ok := dir.children[entry]
	if !ok {
		node = &fileNode{entry: entry, created: now}
		dir.children[entry] = node
	}
	node.data += data
	node.modified = now

	s.notifyFile(contract, hash, entry, dataserver.EventAppend, node)
	s.notifyDir(contract, hash, dataserver.EventAppend, []*fileNode{node})
	return nil
}

// appendRootFile is writeRootFile's append counterpart for a bare-hash file.
func (s *Store) appendRootFile(b *bubble, contract, hash, data string) error {
	if hash == bpath.ZeroHash {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "cannot append to the bubble root")
	}
	if _, isDir := b.dirs[hash]; isDir {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "path is a directory")
	}

	now := s.now()
	node, ok := b.files[hash]
	if !ok {
		node = &fileNode{created: now}
		b.files[hash] = node
	}
	node.data += data
	node.modified = now

	s.notifyRootFile(contract, hash, dataserver.EventAppend, node)
	return nil
}

// Read returns the file's content, or the directory's listing if path
// names a bare hash.
func (s *Store) Read(_ context.Context, contract, path string, opts dataserver.ReadOptions) (string, error) {
	hash, entry, err := splitPath(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return "", err
	}

	if entry == "" {
		if node, ok := b.files[hash]; ok {
			return node.data, nil
		}

		entries, err := s.listLocked(b, hash, dataserver.ListOptions{})
		if err != nil {
			return "", err
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		return strings.Join(names, "\n"), nil
	}

	dir, ok := b.dirs[hash]
	if !ok {
		if opts.Silent {
			return "", nil
		}
		return "", bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}
	node, ok := dir.children[entry]
	if !ok {
		if opts.Silent {
			return "", nil
		}
		return "", bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}
	return node.data, nil
}

// Delete removes a file entry, or cascades a directory hash's removal —
// never the bubble root.
func (s *Store) Delete(_ context.Context, contract, path string, opts dataserver.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	hash, entry, err := splitPath(path)
	if err != nil {
		return err
	}

	if entry == "" {
		if hash == bpath.ZeroHash {
			return bubbleerr.New(bubbleerr.CodeInvalidOption, "cannot delete bubble root")
		}
		if node, ok := b.files[hash]; ok {
			delete(b.files, hash)
			s.notifyRootFile(contract, hash, dataserver.EventDelete, node)
			return nil
		}
		dir, ok := b.dirs[hash]
		if !ok {
			if opts.Silent {
				return nil
			}
			return bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
		}
		deleted := make([]*fileNode, 0, len(dir.children))
		for _, c := range dir.children {
			deleted = append(deleted, c)
		}
		delete(b.dirs, hash)
		s.notifyDir(contract, hash, dataserver.EventDelete, deleted)
		return nil
	}

	dir, ok := b.dirs[hash]
	if !ok {
		if opts.Silent {
			return nil
		}
		return bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}
	node, ok := dir.children[entry]
	if !ok {
		if opts.Silent {
			return nil
		}
		return bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}
	delete(dir.children, entry)
	s.notifyFile(contract, hash, entry, dataserver.EventDelete, node)
	s.notifyDir(contract, hash, dataserver.EventDelete, []*fileNode{node})
	return nil
}

// Mkdir materializes the directory hash named by path. The Guardian only
// dispatches mkdir once the ACC has already classified the hash as a
// directory; this call simply brings storage bookkeeping in line.
func (s *Store) Mkdir(_ context.Context, contract, path string, opts dataserver.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	hash, _, err := splitPath(path)
	if err != nil {
		return err
	}
	if hash == bpath.ZeroHash {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "cannot mkdir the bubble root")
	}
	if _, isFile := b.files[hash]; isFile {
		return bubbleerr.New(bubbleerr.CodeInvalidOption, "path is a file")
	}

	if _, exists := b.dirs[hash]; exists {
		if opts.Silent {
			return nil
		}
		return bubbleerr.New(bubbleerr.CodeDirAlreadyExists, "directory already exists")
	}

	s.ensureDir(b, hash)
	s.notifyDir(contract, hash, dataserver.EventMkdir, nil)
	return nil
}

// List returns a directory's children, or a single directoryOnly summary
// entry, subject to the supplied filters.
func (s *Store) List(_ context.Context, contract, path string, opts dataserver.ListOptions) ([]dataserver.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return nil, bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	hash, entry, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	if entry != "" {
		dir, ok := b.dirs[hash]
		if ok {
			if node, ok := dir.children[entry]; ok {
				return []dataserver.Entry{fileEntryView(hash, node, opts)}, nil
			}
		}
		return nil, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}

	if node, ok := b.files[hash]; ok {
		return []dataserver.Entry{fileEntryView(hash, node, opts)}, nil
	}

	dir, ok := b.dirs[hash]
	if !ok {
		return nil, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}

	if opts.DirectoryOnly {
		length := int64(len(dir.children))
		return []dataserver.Entry{{
			Name:     hash,
			Type:     dataserver.TypeDirectory,
			Length:   &length,
			Created:  &dir.created,
			Modified: &dir.modified,
		}}, nil
	}

	var matcher *regexp.Regexp
	if opts.Matches != "" {
		matcher, err = regexp.Compile(opts.Matches)
		if err != nil {
			return nil, bubbleerr.Wrap(bubbleerr.CodeInvalidOption, "invalid regular expression", err)
		}
	}

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]dataserver.Entry, 0, len(names))
	for _, name := range names {
		node := dir.children[name]
		fullName := hash + "/" + name
		if matcher != nil && !matcher.MatchString(fullName) {
			continue
		}
		if opts.After != nil && node.modified <= *opts.After {
			continue
		}
		if opts.Before != nil && node.modified >= *opts.Before {
			continue
		}
		if opts.CreatedAfter != nil && node.created <= *opts.CreatedAfter {
			continue
		}
		if opts.CreatedBefore != nil && node.created >= *opts.CreatedBefore {
			continue
		}
		out = append(out, fileEntryView(hash, node, opts))
	}
	return out, nil
}

func fileEntryView(hash string, node *fileNode, opts dataserver.ListOptions) dataserver.Entry {
	name := hash
	if node.entry != "" {
		name = hash + "/" + node.entry
	}
	e := dataserver.Entry{Name: name, Type: dataserver.TypeFile}
	if opts.Long || opts.Length {
		length := int64(len(node.data))
		e.Length = &length
	}
	if opts.Long || opts.Created {
		c := node.created
		e.Created = &c
	}
	if opts.Long || opts.Modified {
		m := node.modified
		e.Modified = &m
	}
	return e
}

// Subscribe registers a listener for changes at path (file or directory)
// and returns the initial snapshot the options request.
func (s *Store) Subscribe(_ context.Context, contract, path string, opts dataserver.SubscribeOptions, listener dataserver.Listener) (dataserver.SubscribeResult, error) {
	hash, entry, err := splitPath(path)
	if err != nil {
		return dataserver.SubscribeResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.getBubble(contract)
	if err != nil {
		return dataserver.SubscribeResult{}, err
	}

	var fileView dataserver.Entry
	if entry != "" {
		dir, ok := b.dirs[hash]
		if !ok {
			return dataserver.SubscribeResult{}, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
		}
		node, ok := dir.children[entry]
		if !ok {
			return dataserver.SubscribeResult{}, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
		}
		fileView = fileEntryView(hash, node, dataserver.ListOptions{Long: true})
	} else if node, ok := b.files[hash]; ok {
		fileView = fileEntryView(hash, node, dataserver.ListOptions{Long: true})
	} else {
		dir, ok := b.dirs[hash]
		if !ok {
			return dataserver.SubscribeResult{}, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
		}
		length := int64(len(dir.children))
		fileView = dataserver.Entry{Name: hash, Type: dataserver.TypeDirectory, Length: &length, Created: &dir.created, Modified: &dir.modified}
	}

	id := uuid.NewString()
	s.subs[id] = &subscription{contract: contract, hash: hash, entry: entry, listener: listener}

	result := dataserver.SubscribeResult{SubscriptionID: id, File: fileView}
	if _, isFile := b.files[hash]; opts.List && entry == "" && !isFile {
		entries, _ := s.listLocked(b, hash, dataserver.ListOptions{Long: true})
		result.List = entries
	}
	if opts.Read && entry != "" {
		dir := b.dirs[hash]
		result.Data = dir.children[entry].data
	}
	if node, ok := b.files[hash]; opts.Read && entry == "" && ok {
		result.Data = node.data
	}
	return result, nil
}

func (s *Store) listLocked(b *bubble, hash string, opts dataserver.ListOptions) ([]dataserver.Entry, error) {
	dir, ok := b.dirs[hash]
	if !ok {
		return nil, bubbleerr.New(bubbleerr.CodeFileDoesNotExist, "file does not exist")
	}
	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]dataserver.Entry, 0, len(names))
	for _, name := range names {
		out = append(out, fileEntryView(hash, dir.children[name], opts))
	}
	return out, nil
}

// Unsubscribe removes a subscription. It succeeds even if the id is
// already gone.
func (s *Store) Unsubscribe(_ context.Context, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, subscriptionID)
	return nil
}

// Terminate drops the entire bubble.
func (s *Store) Terminate(_ context.Context, contract string, opts dataserver.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bubbles[contract]; !ok {
		if opts.Silent {
			return nil
		}
		return bubbleerr.New(bubbleerr.CodeDoesNotExist, "bubble does not exist")
	}
	delete(s.bubbles, contract)
	for id, sub := range s.subs {
		if sub.contract == contract {
			delete(s.subs, id)
		}
	}
	return nil
}

// notifyFile fans a notification out to any subscription registered
// exactly on (contract, hash, entry).
func (s *Store) notifyFile(contract, hash, entry string, event dataserver.Event, node *fileNode) {
	if node == nil {
		return
	}
	var data interface{}
	if event != dataserver.EventDelete {
		data = node.data
	}
	view := dataserver.Entry{Name: hash + "/" + entry, Type: dataserver.TypeFile}
	if event != dataserver.EventDelete {
		length := int64(len(node.data))
		view.Length = &length
	}
	for id, sub := range s.subs {
		if sub.contract == contract && sub.hash == hash && sub.entry == entry {
			sub.listener(dataserver.Notification{SubscriptionID: id, Event: event, File: view, Data: data})
		}
	}
}

// notifyRootFile is notifyFile's counterpart for a bare-hash file: the
// hash itself names the file, with no child entry.
func (s *Store) notifyRootFile(contract, hash string, event dataserver.Event, node *fileNode) {
	if node == nil {
		return
	}
	var data interface{}
	if event != dataserver.EventDelete {
		data = node.data
	}
	view := dataserver.Entry{Name: hash, Type: dataserver.TypeFile}
	if event != dataserver.EventDelete {
		length := int64(len(node.data))
		view.Length = &length
	}
	for id, sub := range s.subs {
		if sub.contract == contract && sub.hash == hash && sub.entry == "" {
			sub.listener(dataserver.Notification{SubscriptionID: id, Event: event, File: view, Data: data})
		}
	}
}

// notifyDir fans an "update" notification out to any subscription
// registered on the directory hash itself, describing the changed
// children.
func (s *Store) notifyDir(contract, hash string, event dataserver.Event, changed []*fileNode) {
	type childChange struct {
		dataserver.Entry
		Event dataserver.Event `json:"event"`
	}
	changes := make([]childChange, 0, len(changed))
	for _, c := range changed {
		if c == nil {
			continue
		}
		view := dataserver.Entry{Name: hash + "/" + c.entry, Type: dataserver.TypeFile}
		if event != dataserver.EventDelete {
			length := int64(len(c.data))
			view.Length = &length
		}
		changes = append(changes, childChange{Entry: view, Event: event})
	}

	for id, sub := range s.subs {
		if sub.contract == contract && sub.hash == hash && sub.entry == "" {
			sub.listener(dataserver.Notification{
				SubscriptionID: id,
				Event:          dataserver.EventUpdate,
				File:           dataserver.Entry{Name: hash, Type: dataserver.TypeDirectory},
				Data:           changes,
			})
		}
	}
}
