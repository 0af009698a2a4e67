// Package contentid implements the globally-unique Bubble Protocol content
// identifier: a {chain, contract, provider, file?} tuple that can be
// parsed from and rendered to three surface forms — a JSON object, a
// base64url string (the wire form), and a did:bubble: URI.
package contentid

import (
	"encoding/json"
	"strings"

	"github.com/ethdenver2026/gateway/bpath"
	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/codec"
)

const didPrefix = "did:bubble:"

// ContentId is the four-tuple identifying a piece of content within a
// bubble.
type ContentId struct {
	Chain    uint64      `json:"chain"`
	Contract string      `json:"contract"`
	Provider string      `json:"provider"`
	File     *bpath.Path `json:"file,omitempty"`
}

// wireForm mirrors ContentId's field order for JSON encode/decode — the
// spec requires chain, contract, provider, file? in that order, with file
// omitted entirely when absent.
type wireForm struct {
	Chain    uint64  `json:"chain"`
	Contract string  `json:"contract"`
	Provider string  `json:"provider"`
	File     *string `json:"file,omitempty"`
}

// New validates and constructs a ContentId from already-typed fields.
func New(chain uint64, contract, provider string, file *bpath.Path) (*ContentId, error) {
	normContract, err := codec.NormalizeHexAddress(contract)
	if err != nil {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "invalid object field(s): contract")
	}
	if provider == "" {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "invalid object field(s): provider")
	}
	return &ContentId{Chain: chain, Contract: normContract, Provider: provider, File: file}, nil
}

// Parse accepts a JSON object, a base64url string, a standard base64
// string, or a did:bubble:<base64url> URI and returns the decoded
// ContentId. Any other did:* prefix is a hard rejection distinct from
// "not recognised as base64".
func Parse(input string) (*ContentId, error) {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "did:") {
		if !strings.HasPrefix(trimmed, didPrefix) {
			return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "unsupported did scheme")
		}
		return parseEncoded(strings.TrimPrefix(trimmed, didPrefix))
	}

	if strings.HasPrefix(trimmed, "{") {
		return parseObjectJSON([]byte(trimmed))
	}

	return parseEncoded(trimmed)
}

// ParseObject accepts a decoded JSON object form directly.
func ParseObject(raw []byte) (*ContentId, error) {
	return parseObjectJSON(raw)
}

func parseEncoded(encoded string) (*ContentId, error) {
	raw, err := codec.DecodeFlexibleBase64(encoded)
	if err != nil {
		return nil, bubbleerr.Wrap(bubbleerr.CodeInvalidContentID, "malformed content id encoding", err)
	}
	return parseObjectJSON(raw)
}

func parseObjectJSON(raw []byte) (*ContentId, error) {
	var w wireForm
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, bubbleerr.Wrap(bubbleerr.CodeInvalidContentID, "invalid object field(s)", err)
	}

	contract, err := codec.NormalizeHexAddress(w.Contract)
	if err != nil {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "invalid object field(s): contract")
	}
	if w.Provider == "" {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "invalid object field(s): provider")
	}

	cid := &ContentId{Chain: w.Chain, Contract: contract, Provider: w.Provider}
	if w.File != nil {
		p, err := bpath.Parse(*w.File)
		if err != nil {
			return nil, bubbleerr.New(bubbleerr.CodeInvalidContentID, "invalid object field(s): file")
		}
		cid.File = p
	}
	return cid, nil
}

// Object renders the ContentId into its JSON-object wire form bytes, with
// fields in chain, contract, provider, file? order.
func (c *ContentId) Object() ([]byte, error) {
	w := wireForm{Chain: c.Chain, Contract: c.Contract, Provider: c.Provider}
	if c.File != nil {
		s := c.File.String()
		w.File = &s
	}
	return json.Marshal(w)
}

// String renders the ContentId as unpadded base64url of its UTF-8 JSON
// serialization — the canonical wire form.
func (c *ContentId) String() (string, error) {
	raw, err := c.Object()
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64URL(raw), nil
}

// DID renders the ContentId as a did:bubble: URI.
func (c *ContentId) DID() (string, error) {
	s, err := c.String()
	if err != nil {
		return "", err
	}
	return didPrefix + s, nil
}

// SetFile returns a copy of c with its file field replaced.
func (c *ContentId) SetFile(p *bpath.Path) *ContentId {
	clone := *c
	clone.File = p
	return &clone
}

// Equal reports whether two ContentIds are semantically identical.
func (c *ContentId) Equal(other *ContentId) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Chain != other.Chain || c.Contract != other.Contract || c.Provider != other.Provider {
		return false
	}
	switch {
	case c.File == nil && other.File == nil:
		return true
	case c.File == nil || other.File == nil:
		return false
	default:
		return c.File.String() == other.File.String()
	}
}

// MarshalJSON implements json.Marshaler using the canonical field order.
func (c *ContentId) MarshalJSON() ([]byte, error) {
	return c.Object()
}

// UnmarshalJSON implements json.Unmarshaler over the object wire form.
func (c *ContentId) UnmarshalJSON(data []byte) error {
	parsed, err := parseObjectJSON(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}
