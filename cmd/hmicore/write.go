package main

import (
	"fmt"
)

type WriteCommand struct {
	TagOptions
	Args struct {
		Ref   string `positional-arg-name:"tag-or-address"`
		Value string `positional-arg-name:"value"`
	} `positional-args:"yes" required:"yes"`
}

func (c *WriteCommand) Execute(args []string) error {
	cfg, m, log, err := open()
	if err != nil {
		return err
	}
	defer m.Close()

	tags, err := c.resolve(cfg, []string{c.Args.Ref})
	if err != nil {
		return err
	}
	t := tags[0]
	if err := m.ProcessWriter().WriteValue(t, c.Args.Value); err != nil {
		return err
	}
	log.Debug("value written", "tag", t.String(), "value", c.Args.Value)

	// one updater cycle sends the value to Modbus devices and reads it back
	r := m.ProcessReader()
	if err := refresh(m, r); err != nil {
		return err
	}
	got, err := r.GetValue(t)
	if err != nil {
		return err
	}
	fmt.Printf("Write verify: %v = %v\n", c.Args.Ref, got)
	return nil
}
