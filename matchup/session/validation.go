package session

import (
	"errors"
	"fmt"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/teams"
)

// ValidationError rejects a query before anything is sent. Message is meant
// for the end user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// checkSeason bounds season to the seasons the backend holds.
func checkSeason(field string, season, currentYear int) error {
	if season < teams.EarliestSeason {
		return invalid(field, "Season %d is not available. The earliest season is %d.", season, teams.EarliestSeason)
	}
	if season > currentYear {
		return invalid(field, "Season %d has not been played yet.", season)
	}
	return nil
}

// checkTeamSeason rejects seasons before the team existed.
func checkTeamSeason(field string, t teams.Team, season int) error {
	if season < t.Founded {
		return invalid(field, "%s did not exist in %d. The team was established in %d.", t.Name, season, t.Founded)
	}
	return nil
}

func lookupTeam(cat *teams.Catalog, field, code string) (teams.Team, error) {
	t, err := cat.Lookup(code)
	if err != nil {
		return teams.Team{}, invalid(field, "Unknown team %q.", code)
	}
	return t, nil
}

// validatePrediction checks both sides of a matchup.
func validatePrediction(cat *teams.Catalog, q PredictionQuery, currentYear int) (team, opponent teams.Team, err error) {
	if team, err = lookupTeam(cat, "team", q.Team); err != nil {
		return
	}
	if opponent, err = lookupTeam(cat, "opponent", q.Opponent); err != nil {
		return
	}
	if err = checkSeason("season1", q.Season1, currentYear); err != nil {
		return
	}
	if err = checkSeason("season2", q.Season2, currentYear); err != nil {
		return
	}
	if err = checkTeamSeason("season1", team, q.Season1); err != nil {
		return
	}
	err = checkTeamSeason("season2", opponent, q.Season2)
	return
}

// validateTableQuery checks a history query and returns the canonical scope.
func validateTableQuery(cat *teams.Catalog, scope protocol.Scope, season, currentYear int) (protocol.Scope, error) {
	if err := checkSeason("season", season, currentYear); err != nil {
		return "", err
	}
	if scope.IsAll() {
		return protocol.ScopeAll, nil
	}
	t, err := lookupTeam(cat, "team", string(scope))
	if err != nil {
		return "", err
	}
	if err := checkTeamSeason("season", t, season); err != nil {
		return "", err
	}
	return protocol.Scope(t.Code), nil
}
