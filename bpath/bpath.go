// Package bpath implements the Bubble Protocol content path grammar:
// <32-byte-hex>[ "/" <posix-name> ].
package bpath

import (
	"strings"
	"unicode/utf8"

	"github.com/ethdenver2026/gateway/codec"
)

// ZeroHash is the all-zero 32-byte hex hash that denotes the bubble root.
const ZeroHash = "0x" + zeroHex64

const zeroHex64 = "0000000000000000000000000000000000000000000000000000000000000000"

const maxEntryBytes = 255

// Path is a parsed and validated Bubble Protocol path: a 32-byte hex hash
// identifying a bubble directory, plus an optional POSIX-like entry name
// for content addressed within that directory.
type Path struct {
	hash  string // canonical lowercase 0x-prefixed 32-byte hex
	entry string // empty when the path is a bare hash
}

// Parse validates s against the path grammar and returns the canonicalized
// Path. H is normalized to lowercase with a 0x prefix (prepended if
// missing); any other form is rejected.
func Parse(s string) (*Path, error) {
	hashPart, entryPart, hasEntry := strings.Cut(s, "/")

	hash, err := codec.NormalizeHash32(hashPart)
	if err != nil {
		return nil, err
	}

	if !hasEntry {
		return &Path{hash: hash}, nil
	}

	if err := validateEntry(entryPart); err != nil {
		return nil, err
	}
	return &Path{hash: hash, entry: entryPart}, nil
}

// Root returns the Path denoting the bubble root.
func Root() *Path {
	return &Path{hash: ZeroHash}
}

func validateEntry(e string) error {
	switch {
	case e == "":
		return errInvalidEntry("empty")
	case len(e) > maxEntryBytes:
		return errInvalidEntry("too long")
	case strings.ContainsRune(e, 0):
		return errInvalidEntry("contains NUL")
	case strings.ContainsRune(e, '/'):
		return errInvalidEntry("contains /")
	case e == "." || e == "..":
		return errInvalidEntry("reserved name")
	case !utf8.ValidString(e):
		return errInvalidEntry("invalid UTF-8")
	}
	return nil
}

type pathError struct{ msg string }

func (e *pathError) Error() string { return "invalid path entry: " + e.msg }

func errInvalidEntry(reason string) error { return &pathError{msg: reason} }

// String renders the canonical path form: the hash, plus "/"+entry when
// an entry is present.
func (p *Path) String() string {
	if p.entry == "" {
		return p.hash
	}
	return p.hash + "/" + p.entry
}

// Hash returns the canonical 32-byte hex hash component.
func (p *Path) Hash() string { return p.hash }

// Entry returns the POSIX-like entry name, or "" if the path is a bare
// hash.
func (p *Path) Entry() string { return p.entry }

// HasEntry reports whether the path names an entry within its directory
// hash, as opposed to the hash's own directory.
func (p *Path) HasEntry() bool { return p.entry != "" }

// IsRoot reports whether this path denotes the bubble root: the all-zero
// hash with no entry. Roots are always directories.
func (p *Path) IsRoot() bool {
	return p.hash == ZeroHash && p.entry == ""
}

// PermissionedPart returns the hash used to query the ACC for permissions
// — always the hash component, regardless of whether an entry is present.
func (p *Path) PermissionedPart() string {
	return p.hash
}

// PermissionBits is the subset of the decoded ACC permission word that
// ApplyPermissions needs. Defined here (not imported from package
// permissions) to avoid a dependency cycle; package permissions' decoded
// type satisfies it structurally.
type PermissionBits interface {
	IsDirectory() bool
	BubbleTerminated() bool
}

// Resolved is a Path overlaid with the ACC's permission decision for its
// hash component: whether it denotes a directory, and (derived) whether
// it is valid given the presence or absence of an entry suffix.
type Resolved struct {
	*Path
	valid    bool
	directory bool
}

// ApplyPermissions overlays bits on p: if the bits say the hash is not a
// directory but the path carries an entry
// suffix, the path becomes invalid (a file cannot contain children). The
// terminatedOverlay flag suppresses that downgrade so a terminate call
// remains dispatchable on an already-terminated (and thus permission-word
// is typically garbage) bubble.
func (p *Path) ApplyPermissions(bits PermissionBits, terminatedOverlay bool) *Resolved {
	r := &Resolved{Path: p}

	if p.IsRoot() {
		r.directory = true
		r.valid = true
		return r
	}

	r.directory = bits.IsDirectory()

	switch {
	case !r.directory && p.HasEntry():
		// A non-directory hash cannot contain a named entry.
		r.valid = terminatedOverlay || bits.BubbleTerminated()
	default:
		r.valid = true
	}
	return r
}

// IsDirectory reports whether the resolved path denotes a directory.
// A path with an entry suffix under a directory hash denotes a file, not
// a (sub)directory, unless it is the bare hash itself.
func (r *Resolved) IsDirectory() bool {
	return r.directory && !r.HasEntry()
}

// IsFile reports whether the resolved path denotes a file: a directory
// hash with an entry suffix, or a non-directory hash used as a bare file
// identifier.
func (r *Resolved) IsFile() bool {
	if r.IsRoot() {
		return false
	}
	if r.HasEntry() {
		return r.directory
	}
	return !r.directory
}

// Valid reports whether the resolved path remains grammatically
// dispatchable after the permission overlay.
func (r *Resolved) Valid() bool {
	return r.valid
}
