package fill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/athuldev13/Loki/pkg/histogram"
	"github.com/stretchr/testify/require"
)

func validSpec(name string) Spec {
	return Spec{
		Name: name,
		Axes: []histogram.Axis{{Expr: "tau_pt", Edges: []float64{0, 50, 100}}},
	}
}

func TestSpecValidate(t *testing.T) {
	s := validSpec("h")
	require.NoError(t, s.Validate())

	s = validSpec("")
	require.Error(t, s.Validate())

	s = validSpec("h")
	s.Axes = nil
	require.Error(t, s.Validate())

	s = validSpec("h")
	s.Axes = []histogram.Axis{
		{Expr: "a", Edges: []float64{0, 1}},
		{Expr: "b", Edges: []float64{0, 1}},
		{Expr: "c", Edges: []float64{0, 1}},
		{Expr: "d", Edges: []float64{0, 1}},
	}
	require.Error(t, s.Validate(), "more than 3 axes must be rejected")

	s = validSpec("h")
	s.Axes[0].Edges = []float64{1, 1}
	require.Error(t, s.Validate())
}

func TestConfigValidateDuplicateIdentity(t *testing.T) {
	cfg := Config{Histograms: []Spec{validSpec("h"), validSpec("h")}}
	require.ErrorContains(t, cfg.Validate(), "duplicate")

	cfg = Config{Histograms: []Spec{validSpec("a"), validSpec("b")}}
	require.NoError(t, cfg.Validate())

	cfg = Config{}
	require.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	body := `{
		"histograms": [
			{
				"name": "tau_pt_sel",
				"axes": [{"expr": "tau_pt", "edges": [0, 20, 40, 60, 100]}],
				"selection": "tau_pass",
				"weight": "event_weight"
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Histograms, 1)
	require.Equal(t, "tau_pt_sel", cfg.Histograms[0].Name)
	require.Equal(t, "tau_pass", cfg.Histograms[0].Selection)
	require.Equal(t, 4, cfg.Histograms[0].Axes[0].Bins())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"histograms": [{"name": "", "axes": []}]}`), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
