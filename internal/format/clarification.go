package format

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

// OptionSet is what the user may answer to one kind of clarification.
type OptionSet struct {
	Options  []string `yaml:"options"`
	FreeText bool     `yaml:"free_text"`
}

// Taxonomy maps each clarification kind to its option set.
type Taxonomy map[diagnosis.Awaiting]OptionSet

var problemOptions = []string{"Temperature", "Pressure", "Vibration", "Noise", "Not starting", "Leak"}

// DefaultTaxonomy returns the built-in option sets.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		diagnosis.AwaitingEngine:    {Options: []string{"Main Engine", "Auxiliary Engine"}},
		diagnosis.AwaitingComponent: {Options: slices.Clone(problemOptions), FreeText: true},
		diagnosis.AwaitingProblem:   {Options: slices.Clone(problemOptions), FreeText: true},
	}
}

// LoadTaxonomy reads option sets from a YAML file of the form
//
//	component:
//	  options: [Temperature, Pressure]
//	  free_text: true
//
// Kinds present in the file replace the built-in set for that kind; all other
// kinds keep their defaults.
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}
	var raw map[string]OptionSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing taxonomy %s: %w", path, err)
	}

	t := DefaultTaxonomy()
	for kind, set := range raw {
		kind = strings.TrimSpace(kind)
		if kind == "" {
			return nil, errors.New("parsing taxonomy: empty clarification kind")
		}
		for _, o := range set.Options {
			if strings.TrimSpace(o) == "" {
				return nil, fmt.Errorf("parsing taxonomy: blank option for %q", kind)
			}
		}
		t[diagnosis.Awaiting(kind)] = set
	}
	return t, nil
}

// RenderedClarification is the display form of a clarification request.
type RenderedClarification struct {
	Awaiting diagnosis.Awaiting `json:"awaiting"`
	Message  string             `json:"message"`
	Options  []string           `json:"options"`
	FreeText bool               `json:"free_text"`
	// Recognized is false when the kind is not in the taxonomy; the raw
	// message is then the only guidance shown.
	Recognized bool `json:"recognized"`
}

// ErrNoSuchOption is returned by Select for an out-of-range index.
var ErrNoSuchOption = errors.New("no such option")

// Select returns the label of option i exactly as offered. The label is the
// text of the next query.
func (r RenderedClarification) Select(i int) (string, error) {
	if i < 0 || i >= len(r.Options) {
		return "", fmt.Errorf("%w: %d of %d", ErrNoSuchOption, i+1, len(r.Options))
	}
	return r.Options[i], nil
}

// ErrOptionRequired is returned by Accept when the answer is neither an
// offered option nor allowed as free text.
var ErrOptionRequired = errors.New("answer with one of the offered options")

// Accept checks that text may answer r: either free text is allowed or text
// is exactly one of the option labels.
func (r RenderedClarification) Accept(text string) error {
	if r.FreeText || slices.Contains(r.Options, text) {
		return nil
	}
	return ErrOptionRequired
}

// Format renders a clarification request. Unknown kinds never fail: they get
// no options and a free-text slot.
func (t Taxonomy) Format(awaiting diagnosis.Awaiting, message string) RenderedClarification {
	set, ok := t[awaiting]
	if !ok {
		return RenderedClarification{Awaiting: awaiting, Message: message, FreeText: true}
	}
	return RenderedClarification{
		Awaiting:   awaiting,
		Message:    message,
		Options:    slices.Clone(set.Options),
		FreeText:   set.FreeText,
		Recognized: true,
	}
}

// FormatClarification renders with the built-in taxonomy.
func FormatClarification(awaiting diagnosis.Awaiting, message string) RenderedClarification {
	return DefaultTaxonomy().Format(awaiting, message)
}
