package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
)

type TagsListCommand struct{}

func (c *TagsListCommand) Execute(args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	rows := append(cfg.Tags[:0:0], cfg.Tags...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONNECTION\tTYPE\tADDRESS")
	for _, row := range rows {
		t, err := row.Tag()
		if err != nil {
			return err
		}
		addr, _ := t.Address()
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", row.ID, row.Name, row.Connection, t.Type(), addr)
	}
	return w.Flush()
}
