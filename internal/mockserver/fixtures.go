package mockserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pumped-fn/pumped-gql/types"
)

// Fixtures is the canned behaviour of a Server, usually loaded from YAML:
//
//	responses:
//	  - match: "hero"
//	    variables: {episode: JEDI}
//	    status: 200
//	    delay: 50ms
//	    body:
//	      data: {hero: {name: Luke}}
type Fixtures struct {
	Responses []Response `yaml:"responses"`
}

// Response is returned for requests whose normalised query contains Match
// and, when Variables is set, whose variables equal it.
type Response struct {
	Match     string         `yaml:"match"`
	Variables map[string]any `yaml:"variables"`
	Status    int            `yaml:"status"`
	Delay     time.Duration  `yaml:"delay"`
	Body      map[string]any `yaml:"body"`
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("failed to read fixtures %q: %w", path, err)
	}
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixtures{}, fmt.Errorf("failed to parse fixtures %q: %w", path, err)
	}
	return f, nil
}

// find returns the first response matching query and variables.
func (f Fixtures) find(query string, variables map[string]any) (Response, bool) {
	normalized := types.NormalizeQuery(query)
	for _, r := range f.Responses {
		if r.Match != "" && !strings.Contains(normalized, types.NormalizeQuery(r.Match)) {
			continue
		}
		if r.Variables != nil && !sameJSON(r.Variables, variables) {
			continue
		}
		return r, true
	}
	return Response{}, false
}

func sameJSON(a, b map[string]any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
