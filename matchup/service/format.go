package service

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/wricardo/gridiron-odds/matchup/session"
)

// FormatPrediction renders an outcome as wins out of 100.
func FormatPrediction(q session.PredictionQuery, o session.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d vs %s %d\n", o.Team1, q.Season1, o.Team2, q.Season2)
	fmt.Fprintf(&b, "%s wins %d out of 100 games\n", o.Team1, o.Team1Wins)
	fmt.Fprintf(&b, "%s wins %d out of 100 games\n", o.Team2, o.Team2Wins)
	fmt.Fprintf(&b, "Predicted winner: %s\n", o.Winner)
	return b.String()
}

// FormatHistory renders the history table as aligned text.
func FormatHistory(snap *session.HistorySnapshot) string {
	var b strings.Builder
	scope := snap.DisplayedScope
	if scope == "" {
		scope = snap.Scope
	}
	season := snap.DisplayedSeason
	if season == 0 {
		season = snap.Season
	}
	fmt.Fprintf(&b, "Games: %s %d\n", scope, season)

	if snap.Dataset == nil {
		if snap.Loading {
			fmt.Fprintf(&b, "Loading, %d rows received so far.\n", snap.ReceivedRows)
			return b.String()
		}
		b.WriteString("No table loaded.\n")
		return b.String()
	}
	if snap.Sort != nil {
		fmt.Fprintf(&b, "Sorted by column %d (%s)\n", snap.Sort.Column, snap.Sort.Direction)
	}
	if snap.Dataset.Len() == 0 {
		b.WriteString("No games found.\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(snap.Dataset.Headers, "\t"))
	for _, row := range snap.Dataset.Rows {
		fmt.Fprintln(tw, strings.Join(row.Strings(), "\t"))
	}
	tw.Flush()
	return b.String()
}
