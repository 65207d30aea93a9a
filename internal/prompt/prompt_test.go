package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/retrieval"
)

func TestParseMode(t *testing.T) {
	for id, want := range map[string]Mode{
		"0": ModeFlat, "1": ModeStructured, "2": ModeFlatPrior,
		"3": ModeStructuredPrior, " 4 ": ModeGeneFiltered,
	} {
		got, err := ParseMode(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "5", "-1", "one", "1.0"} {
		_, err := ParseMode(bad)
		require.Error(t, err, bad)
		assert.True(t, failure.Is(err, failure.Configuration), bad)
	}
}

func TestModeDispatch(t *testing.T) {
	cases := []struct {
		mode                     Mode
		structured, genes, prior bool
	}{
		{ModeFlat, false, false, false},
		{ModeStructured, true, false, false},
		{ModeFlatPrior, false, false, true},
		{ModeStructuredPrior, true, false, true},
		{ModeGeneFiltered, false, true, false},
	}
	th := retrieval.Threshold{Percentile: 75, MinimumSimilarity: 0.5}
	for _, c := range cases {
		t.Run(c.mode.String(), func(t *testing.T) {
			assert.Equal(t, c.structured, c.mode.Structured())
			assert.Equal(t, c.genes, c.mode.GeneFilter())
			assert.Equal(t, c.prior, c.mode.NeedsPriorKnowledge())

			opts := c.mode.RetrievalOptions(1500, th)
			assert.Equal(t, retrieval.Options{
				Volume: 1500, Threshold: th, Structured: c.structured, GeneFilter: c.genes,
			}, opts)
		})
	}
	assert.Equal(t, "invalid(9)", Mode(9).String())
	assert.Equal(t, "3", ModeStructuredPrior.ID())
}

func TestBuildWithoutPrior(t *testing.T) {
	for _, m := range []Mode{ModeFlat, ModeStructured, ModeGeneFiltered} {
		b, err := NewBuilder(m, nil)
		require.NoError(t, err)
		assert.Equal(t, "Context: ctx\nQuestion: q?", b.Build("ctx", "q?"))
	}
}

func TestBuildWithPrior(t *testing.T) {
	prior := "Genes in the question are always relevant."
	for _, m := range []Mode{ModeFlatPrior, ModeStructuredPrior} {
		b, err := NewBuilder(m, &prior)
		require.NoError(t, err)
		assert.Equal(t, m, b.Mode())
		assert.Equal(t,
			"Context: ctx\nIMPORTANT NOTES:\nGenes in the question are always relevant.\nQuestion: q?",
			b.Build("ctx", "q?"))
	}
}

func TestPriorIgnoredOutsidePriorModes(t *testing.T) {
	prior := "notes"
	b, err := NewBuilder(ModeFlat, &prior)
	require.NoError(t, err)
	assert.NotContains(t, b.Build("c", "q"), "IMPORTANT NOTES")
}

func TestEmptyPriorIsPresent(t *testing.T) {
	empty := ""
	b, err := NewBuilder(ModeFlatPrior, &empty)
	require.NoError(t, err)
	assert.Equal(t, "Context: c\nIMPORTANT NOTES:\n\nQuestion: q", b.Build("c", "q"))
}

func TestModeGatingRequiresPrior(t *testing.T) {
	for _, m := range []Mode{ModeFlatPrior, ModeStructuredPrior} {
		_, err := NewBuilder(m, nil)
		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.Configuration))
	}
	_, err := NewBuilder(Mode(7), nil)
	assert.True(t, failure.Is(err, failure.Configuration))
}
