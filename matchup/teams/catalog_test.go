package teams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Equal(t, 32, c.Len())

	all := c.All()
	require.Len(t, all, 32)
	assert.Equal(t, "ARI", all[0].Code)
	assert.Equal(t, "WAS", all[len(all)-1].Code)
}

func TestLookup(t *testing.T) {
	c := Default()

	t.Run("known team", func(t *testing.T) {
		team, err := c.Lookup("MIN")
		require.NoError(t, err)
		assert.Equal(t, "Minnesota Vikings", team.Name)
		assert.Equal(t, 1970, team.Founded)
	})

	t.Run("case insensitive", func(t *testing.T) {
		team, err := c.Lookup(" hou ")
		require.NoError(t, err)
		assert.Equal(t, "HOU", team.Code)
		assert.Equal(t, 2002, team.Founded)
	})

	t.Run("unknown team", func(t *testing.T) {
		_, err := c.Lookup("XYZ")
		assert.ErrorIs(t, err, ErrUnknownTeam)
	})
}

func TestFoundingYears(t *testing.T) {
	c := Default()
	car, err := c.Lookup("CAR")
	require.NoError(t, err)
	assert.Equal(t, 1995, car.Founded)

	_, err = c.Lookup("ALL")
	assert.ErrorIs(t, err, ErrUnknownTeam)
}

func TestFirstSeason(t *testing.T) {
	assert.Equal(t, EarliestSeason, Team{Founded: 1920}.FirstSeason())
	assert.Equal(t, 2002, Team{Founded: 2002}.FirstSeason())
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Code = "ZZZ"
	assert.Equal(t, "ARI", c.All()[0].Code)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not json", `{`, "invalid team catalog"},
		{"empty list", `[]`, "catalog has no teams"},
		{"bad code", `[{"code":"min","name":"Vikings","color":"#4F2683","founded":1970}]`, "code must be 2-3 uppercase letters"},
		{"duplicate", `[{"code":"MIN","name":"A","color":"#4F2683","founded":1970},{"code":"MIN","name":"B","color":"#4F2683","founded":1970}]`, "duplicate code"},
		{"missing name", `[{"code":"MIN","name":" ","color":"#4F2683","founded":1970}]`, "name is empty"},
		{"bad color", `[{"code":"MIN","name":"Vikings","color":"purple","founded":1970}]`, "is not #RRGGBB"},
		{"bad year", `[{"code":"MIN","name":"Vikings","color":"#4F2683","founded":1800}]`, "founded year 1800"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`[{"code":"x","name":"","color":"red","founded":1}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code must be")
	assert.Contains(t, err.Error(), "name is empty")
	assert.Contains(t, err.Error(), "not #RRGGBB")
	assert.Contains(t, err.Error(), "founded year")
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses embedded catalog", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Same(t, Default(), c)
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "teams.json")
		data := `[{"code":"AAA","name":"Alpha","color":"#112233","founded":1999}]`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		c, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 1, c.Len())
		assert.Equal(t, "AAA", c.All()[0].Code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
