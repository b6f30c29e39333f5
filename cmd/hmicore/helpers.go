package main

import (
	"fmt"

	"github.com/rolfl/hmicore/config"
	"github.com/rolfl/hmicore/driver"
	"github.com/rolfl/hmicore/tag"
)

// TagOptions select a tag either by name from the tag table or by address
// on a connection.
type TagOptions struct {
	Conn uint32 `short:"n" long:"conn" description:"Connection id for address references"`
	Type string `short:"T" long:"type" default:"BIT" description:"Type for address references (BIT, BYTE, WORD, DWORD, INT, REAL)"`
}

// resolve turns each reference into a tag. A reference is a configured tag
// name, or an address such as I1.3 which then needs --conn.
func (o TagOptions) resolve(cfg *config.Config, refs []string) ([]tag.Tag, error) {
	table, err := cfg.TagTable()
	if err != nil {
		return nil, err
	}
	tags := make([]tag.Tag, 0, len(refs))
	for i, ref := range refs {
		if t, ok := table[ref]; ok {
			tags = append(tags, t)
			continue
		}
		addr, err := tag.ParseAddress(ref)
		if err != nil {
			return nil, fmt.Errorf("%q is neither a tag name nor an address: %w", ref, err)
		}
		if o.Conn == 0 {
			return nil, fmt.Errorf("address %v needs --conn", ref)
		}
		typ, err := tag.ParseType(o.Type)
		if err != nil {
			return nil, err
		}
		t, err := tag.New(uint32(i+1), o.Conn, fmt.Sprintf("arg_%d", i+1), typ, addr)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// refresh runs one cycle of every updater and then refreshes r.
func refresh(m *driver.Manager, r *driver.ProcessReader) error {
	for _, h := range m.ProcessUpdaters() {
		if err := h.Updater.UpdateProcessData(); err != nil {
			return err
		}
	}
	return r.UpdateProcessData()
}
