package protocol

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/sderr"
)

// Length check reasons, kept in the wording the FHEM modules expect
const (
	ReasonNoProtocol = "protocol does not exists"
	ReasonTooShort   = "message is to short"
	ReasonTooLong    = "message is to long"
)

// Catalog is the read-only, ordered set of protocol definitions. It is
// built once and then shared by all decoding components.
type Catalog struct {
	defs     map[string]*Definition
	order    []*Definition
	byFormat map[Format][]*Definition
}

// NewCatalog validates and indexes defs. Priority order puts exact-length
// protocols first and keeps insertion order otherwise.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:     make(map[string]*Definition, len(defs)),
		byFormat: make(map[Format][]*Definition),
	}

	for i := range defs {
		d := defs[i]
		if d.ID == "" {
			return nil, fmt.Errorf("protocol at index %d has no id", i)
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate protocol id %s", d.ID)
		}
		if d.Name == "" {
			d.Name = "Protocol_" + d.ID
		}
		if d.Format == FormatSynced && len(d.Sync) == 0 {
			return nil, fmt.Errorf("protocol %s: synced format without sync pattern", d.ID)
		}
		if (d.Format == FormatSynced || d.Format == FormatUnsynced) && len(d.One) == 0 {
			return nil, fmt.Errorf("protocol %s: pulse format without one pattern", d.ID)
		}
		if d.ModuleMatch != "" {
			re, err := regexp.Compile(d.ModuleMatch)
			if err != nil {
				return nil, fmt.Errorf("failed to compile modulematch for protocol %s: %w", d.ID, err)
			}
			d.moduleRe = re
		}
		if d.RegexMatch != "" {
			re, err := regexp.Compile(d.RegexMatch)
			if err != nil {
				return nil, fmt.Errorf("failed to compile regexMatch for protocol %s: %w", d.ID, err)
			}
			d.regexRe = re
		}

		def := &d
		c.defs[d.ID] = def
		c.order = append(c.order, def)
	}

	sort.SliceStable(c.order, func(i, j int) bool {
		return c.order[i].HasExactLength() && !c.order[j].HasExactLength()
	})

	for _, d := range c.order {
		if d.Active() {
			c.byFormat[d.Format] = append(c.byFormat[d.Format], d)
		}
	}

	return c, nil
}

// MustCatalog is NewCatalog for static tables
func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of protocols
func (c *Catalog) Len() int {
	return len(c.order)
}

// Exists reports whether id is in the catalog
func (c *Catalog) Exists(id string) bool {
	_, ok := c.defs[id]
	return ok
}

// Get returns the definition for id
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Ordered returns every definition in priority order
func (c *Catalog) Ordered() []*Definition {
	out := make([]*Definition, len(c.order))
	copy(out, c.order)
	return out
}

// ByFormat returns the active definitions of one format in priority order.
// The returned slice is shared and must not be modified.
func (c *Catalog) ByFormat(f Format) []*Definition {
	return c.byFormat[f]
}

// IDs returns the protocol ids in priority order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.order))
	for i, d := range c.order {
		ids[i] = d.ID
	}
	return ids
}

// LengthInRange checks a message length against the protocol bounds
func (c *Catalog) LengthInRange(id string, length int) error {
	d, ok := c.defs[id]
	if !ok {
		return &sderr.MissingDataError{Reason: ReasonNoProtocol}
	}
	return d.LengthInRange(length)
}

// LengthInRange checks length against the exact-length override when one
// is set, otherwise against LengthMin and LengthMax
func (d *Definition) LengthInRange(length int) error {
	if d.HasExactLength() {
		if length != d.ExactLength {
			return &sderr.LengthMismatchError{Protocol: d.ID, Length: length, Want: d.ExactLength}
		}
		return nil
	}
	if length < d.LengthMin {
		return &sderr.LengthExceededError{Protocol: d.ID, Length: length, Max: d.LengthMin, Reason: ReasonTooShort}
	}
	if d.LengthMax > 0 && length > d.LengthMax {
		return &sderr.LengthExceededError{Protocol: d.ID, Length: length, Max: d.LengthMax, Reason: ReasonTooLong}
	}
	return nil
}

// MCRaw is the plain Manchester output: bits as hex after a max length check
func (c *Catalog) MCRaw(id, bits string, mcbitnum int) (string, error) {
	if id == "" {
		return "", &sderr.MissingDataError{Reason: "no protocolId provided"}
	}
	d, ok := c.defs[id]
	if !ok {
		return "", &sderr.MissingDataError{Reason: ReasonNoProtocol}
	}
	return RawOutput(d, bits, mcbitnum)
}

// RawOutput implements MCRaw for an already resolved definition
func RawOutput(d *Definition, bits string, mcbitnum int) (string, error) {
	if bits == "" {
		return "", &sderr.MissingDataError{Reason: "no bitData provided"}
	}
	if d == nil {
		return "", &sderr.MissingDataError{Reason: "no protocolId provided"}
	}
	if mcbitnum <= 0 {
		mcbitnum = len(bits)
	}
	if d.HasExactLength() {
		if err := d.LengthInRange(mcbitnum); err != nil {
			return "", err
		}
		return codec.BinToHex(bits)
	}
	if d.LengthMax > 0 && mcbitnum > d.LengthMax {
		return "", &sderr.LengthExceededError{Protocol: d.ID, Length: mcbitnum, Max: d.LengthMax, Reason: ReasonTooLong}
	}
	return codec.BinToHex(bits)
}
