package main

import (
	"fmt"
	"os"
	"strings"

	"fairdice.ai/internal/persistence/indexdb"
	"fairdice.ai/internal/sim/controller"
)

// openRollIndex picks the read-model backend from DICE_INDEX_BACKEND. The
// index lives only as long as the process and only mirrors reporter events.
func openRollIndex(disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("DICE_INDEX_BACKEND")))
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "memory":
		return indexdb.OpenSQLite(indexdb.MemoryPath)
	default:
		return nil, fmt.Errorf("unsupported DICE_INDEX_BACKEND: %s", backend)
	}
}

// multiReporter fans controller events out to every non-nil sink in order.
type multiReporter []controller.Reporter

func (m multiReporter) RollSettled(rec controller.RollRecord, rep controller.Report) {
	for _, r := range m {
		if r != nil {
			r.RollSettled(rec, rep)
		}
	}
}

func (m multiReporter) BatchComplete(rep controller.Report) {
	for _, r := range m {
		if r != nil {
			r.BatchComplete(rep)
		}
	}
}

func (m multiReporter) LaunchFailed(sessionID string, err error) {
	for _, r := range m {
		if r != nil {
			r.LaunchFailed(sessionID, err)
		}
	}
}
