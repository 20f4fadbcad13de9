package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.Article, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(namedScanner("arxiv"), namedScanner("MedRxiv"))

	s, err := reg.Resolve(" ARXIV ")
	require.NoError(t, err)
	assert.Equal(t, "arxiv", s.Name())

	_, err = reg.Resolve("medrxiv")
	require.NoError(t, err)

	_, err = reg.Resolve("ieee")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, []string{"arxiv", "medrxiv"}, reg.Names())
}

func TestRequestIntOption(t *testing.T) {
	req := Request{Options: map[string]string{"pageSize": "50", "bad": "x", "neg": "-3"}}
	assert.Equal(t, 50, req.IntOption("pageSize", 200))
	assert.Equal(t, 200, req.IntOption("bad", 200))
	assert.Equal(t, 200, req.IntOption("neg", 200))
	assert.Equal(t, 7, req.IntOption("missing", 7))
}
