package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// renderRoutingChecks prints inconsistent actions, or every action when all is
// set, and returns how many were inconsistent.
func renderRoutingChecks(w io.Writer, checks []repository.RoutingCheck, all bool) int {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Action", "File", "Row", "Routed Row", "Assignee", "Routed Owner", "State"})

	broken := 0
	for _, c := range checks {
		state := "ok"
		switch {
		case c.RoutedRecordID == nil:
			state = "routed record missing"
		case !c.Consistent():
			state = "owner mismatch"
		}
		if state != "ok" {
			broken++
		} else if !all {
			continue
		}
		tw.AppendRow(table.Row{c.ActionID, c.SourceFileID, c.OriginalRowKey, deref(c.RoutedRowKey), c.AssignedToUserID, deref(c.RoutedOwnerID), state})
	}
	if tw.Length() > 0 {
		tw.Render()
	}
	return broken
}

func renderResetResult(w io.Writer, result *models.ApprovalResetResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Approvals Deleted", "Sites Reverted"})
	tw.AppendRow(table.Row{result.ApprovalsDeleted, result.SitesReverted})
	tw.Render()
}
