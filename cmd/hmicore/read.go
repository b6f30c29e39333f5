package main

import (
	"fmt"

	"github.com/rolfl/hmicore/driver"
	"github.com/rolfl/hmicore/tag"
)

type ReadCommand struct {
	TagOptions
	Args struct {
		Refs []string `required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ReadCommand) Execute(args []string) error {
	cfg, m, _, err := open()
	if err != nil {
		return err
	}
	defer m.Close()

	tags, err := c.resolve(cfg, c.Args.Refs)
	if err != nil {
		return err
	}
	r := m.ProcessReader()
	if err := refresh(m, r); err != nil {
		return err
	}

	if allBits(tags) && len(tags) > 1 {
		bits, err := r.GetBitsValue(tags)
		if err != nil {
			return err
		}
		fmt.Println(driver.FormatBools(bits))
		return nil
	}
	for i, t := range tags {
		v, err := r.GetValue(t)
		if err != nil {
			return err
		}
		fmt.Printf("%v = %v\n", c.Args.Refs[i], v)
	}
	return nil
}

func allBits(tags []tag.Tag) bool {
	for _, t := range tags {
		if t.Type() != tag.Bit {
			return false
		}
	}
	return true
}
