package teams

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

//go:embed teams.json
var embeddedCatalog []byte

var (
	ErrUnknownTeam    = errors.New("unknown team")
	ErrInvalidCatalog = errors.New("invalid team catalog")
)

// EarliestSeason is the first season the backend holds data for.
const EarliestSeason = 1970

// Team is the static, read-only metadata of one franchise.
type Team struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Founded int    `json:"founded"`
}

// FirstSeason is the earliest season the team can be queried for.
func (t Team) FirstSeason() int {
	if t.Founded < EarliestSeason {
		return EarliestSeason
	}
	return t.Founded
}

// Catalog maps team codes to their metadata. It is never mutated after
// construction and is safe for concurrent use.
type Catalog struct {
	teams map[string]Team
	codes []string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("embedded team catalog: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Load reads a catalog from a JSON file. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

var (
	codePattern  = regexp.MustCompile(`^[A-Z]{2,3}$`)
	colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Parse decodes and validates a JSON array of teams. Every problem found is
// reported, joined under ErrInvalidCatalog.
func Parse(data []byte) (*Catalog, error) {
	var list []Team
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var problems []error
	if len(list) == 0 {
		problems = append(problems, errors.New("catalog has no teams"))
	}

	latest := time.Now().Year()
	c := &Catalog{teams: make(map[string]Team, len(list))}
	for i, t := range list {
		where := fmt.Sprintf("team %d (%s)", i+1, t.Code)
		if !codePattern.MatchString(t.Code) {
			problems = append(problems, fmt.Errorf("%s: code must be 2-3 uppercase letters", where))
		}
		if _, dup := c.teams[t.Code]; dup {
			problems = append(problems, fmt.Errorf("%s: duplicate code", where))
			continue
		}
		if strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Errorf("%s: name is empty", where))
		}
		if !colorPattern.MatchString(t.Color) {
			problems = append(problems, fmt.Errorf("%s: color %q is not #RRGGBB", where, t.Color))
		}
		if t.Founded < 1920 || t.Founded > latest {
			problems = append(problems, fmt.Errorf("%s: founded year %d outside 1920-%d", where, t.Founded, latest))
		}
		c.teams[t.Code] = t
		c.codes = append(c.codes, t.Code)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(problems...))
	}

	sort.Strings(c.codes)
	return c, nil
}

// Lookup finds a team by code, ignoring case.
func (c *Catalog) Lookup(code string) (Team, error) {
	t, ok := c.teams[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Team{}, fmt.Errorf("%w: %q", ErrUnknownTeam, code)
	}
	return t, nil
}

// All returns every team ordered by code.
func (c *Catalog) All() []Team {
	out := make([]Team, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.teams[code])
	}
	return out
}

// Len returns the number of teams.
func (c *Catalog) Len() int { return len(c.codes) }
