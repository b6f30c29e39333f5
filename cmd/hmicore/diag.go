package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rolfl/hmicore/driver"
)

type DiagCommand struct {
	Args struct {
		Conns []uint32
	} `positional-args:"yes"`
}

func (c *DiagCommand) Execute(args []string) error {
	_, m, _, err := open()
	if err != nil {
		return err
	}
	defer m.Close()

	ids := c.Args.Conns
	if len(ids) == 0 {
		for _, conn := range m.Connections() {
			if conn.Type == driver.TypeModbus {
				ids = append(ids, conn.ID)
			}
		}
	}

	// one cycle, so there is a session to report on
	for _, h := range m.ProcessUpdaters() {
		if err := h.Updater.UpdateProcessData(); err != nil {
			fmt.Printf("Update connection %v: Failed: %v\n", h.ConnectionID, err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONNECTION\tMESSAGES\tBROADCASTS\tCOMM ERRORS\tEXCEPTIONS\tOVERRUNS\tRECONNECTS")
	for _, id := range ids {
		d, err := m.Diagnostics(id)
		if err != nil {
			fmt.Fprintf(w, "%v\tfailed: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\n", id, d.Messages, d.Broadcasts, d.CommErrors, d.Exceptions, d.Overruns, d.Reconnects)
	}
	return w.Flush()
}
