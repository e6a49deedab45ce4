package format

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

var sixOptions = []string{"Temperature", "Pressure", "Vibration", "Noise", "Not starting", "Leak"}

func TestFormatClarification_Engine(t *testing.T) {
	r := FormatClarification(diagnosis.AwaitingEngine, "Which engine?")
	assert.True(t, r.Recognized)
	assert.Equal(t, []string{"Main Engine", "Auxiliary Engine"}, r.Options)
	assert.False(t, r.FreeText)
}

func TestFormatClarification_ComponentAndProblem(t *testing.T) {
	for _, a := range []diagnosis.Awaiting{diagnosis.AwaitingComponent, diagnosis.AwaitingProblem} {
		r := FormatClarification(a, "Which part is affected?")
		assert.Equal(t, sixOptions, r.Options, a)
		assert.True(t, r.FreeText, a)
		assert.Equal(t, "Which part is affected?", r.Message)
	}
}

func TestFormatClarification_Unknown(t *testing.T) {
	r := FormatClarification("subsystem", "Which subsystem?")
	assert.False(t, r.Recognized)
	assert.Empty(t, r.Options)
	assert.True(t, r.FreeText)
	assert.Contains(t, ClarificationMarkdown(r), "Which subsystem?")
}

func TestSelect_ReturnsExactLabel(t *testing.T) {
	r := FormatClarification(diagnosis.AwaitingComponent, "Which part is affected?")
	label, err := r.Select(2)
	require.NoError(t, err)
	assert.Equal(t, "Vibration", label)

	q, err := diagnosis.NewQuery(label, diagnosis.EngineDefault)
	require.NoError(t, err)
	assert.Equal(t, "Vibration", q.Text)

	_, err = r.Select(6)
	assert.True(t, errors.Is(err, ErrNoSuchOption))
	_, err = r.Select(-1)
	assert.True(t, errors.Is(err, ErrNoSuchOption))
}

func TestAccept(t *testing.T) {
	engine := FormatClarification(diagnosis.AwaitingEngine, "Which engine?")
	assert.NoError(t, engine.Accept("Auxiliary Engine"))
	assert.ErrorIs(t, engine.Accept("banana"), ErrOptionRequired)
	assert.ErrorIs(t, engine.Accept("main engine"), ErrOptionRequired, "labels match byte-for-byte")

	component := FormatClarification(diagnosis.AwaitingComponent, "")
	assert.NoError(t, component.Accept("grinding near the gearbox"))

	unknown := FormatClarification("valve", "Which valve?")
	assert.NoError(t, unknown.Accept("the exhaust one"))
}

func TestFormatClarification_CallersCannotAlterDefaults(t *testing.T) {
	r := FormatClarification(diagnosis.AwaitingEngine, "")
	r.Options[0] = "changed"
	assert.Equal(t, "Main Engine", FormatClarification(diagnosis.AwaitingEngine, "").Options[0])
}

func TestLoadTaxonomy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  options: [Main Engine, Auxiliary Engine, Emergency Generator]
subsystem:
  options: [Fuel, Lubrication]
  free_text: true
`), 0o600))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)

	eng := tax.Format(diagnosis.AwaitingEngine, "Which engine?")
	assert.Equal(t, []string{"Main Engine", "Auxiliary Engine", "Emergency Generator"}, eng.Options)

	sub := tax.Format("subsystem", "Which subsystem?")
	assert.True(t, sub.Recognized)
	assert.Equal(t, []string{"Fuel", "Lubrication"}, sub.Options)

	// Kinds absent from the file keep the defaults.
	assert.Equal(t, sixOptions, tax.Format(diagnosis.AwaitingProblem, "").Options)
}

func TestLoadTaxonomy_Errors(t *testing.T) {
	_, err := LoadTaxonomy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  options: [\"  \"]\n"), 0o600))
	_, err = LoadTaxonomy(path)
	assert.Error(t, err)
}

func TestClarificationMarkdown_NumbersOptions(t *testing.T) {
	md := ClarificationMarkdown(FormatClarification(diagnosis.AwaitingComponent, "Which part is affected?"))
	assert.Contains(t, md, "1. Temperature\n")
	assert.Contains(t, md, "6. Leak\n")
	assert.Contains(t, md, "own words")
}
