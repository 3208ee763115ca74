package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/consensus/conductor"
	"plasa/facts"
	"plasa/plasa"
	"plasa/views"
)

func newConductor(t *testing.T) *conductor.Conductor {
	l, err := facts.LoadLedger("../../consensus/conductor/testdata/plasa.json")
	require.NoError(t, err)
	return conductor.New(l, plasa.Config{
		Registry:       "0xplasa",
		MaxAttempts:    3,
		ReadTimeout:    time.Second,
		AttemptTimeout: 5 * time.Second,
		FanOut:         4,
		TopHolders:     10,
	})
}

func TestDiffShowsTheBalanceMove(t *testing.T) {
	c := newConductor(t)
	out, err := diffViews(context.Background(), c, views.KindQuestion, "0xq1", plasa.Viewer{Account: "alice"}, 1500, 3500, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `question 0xq1 for "alice": 1@1000 -> 2@3000`))

	patches, err := diffmatchpatch.New().PatchFromText(strings.SplitN(out, "\n", 2)[1])
	require.NoError(t, err)
	assert.NotEmpty(t, patches)
}

func TestDiffWithoutChanges(t *testing.T) {
	c := newConductor(t)
	out, err := diffViews(context.Background(), c, views.KindStamp, "0xstampAO", plasa.Viewer{Account: "alice"}, 1000, 0, false)
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
}

func TestDiffBeforeHistory(t *testing.T) {
	c := newConductor(t)
	_, err := diffViews(context.Background(), c, views.KindPlasa, "0xplasa", plasa.Viewer{}, 10, 0, false)
	require.Error(t, err)
	assert.Equal(t, plasa.KindNotFound, plasa.KindOf(err))
}

func TestResolveFacts(t *testing.T) {
	config := plasa.Config{RootDir: "/home/u/plasa/", FactsFile: "facts.json"}
	assert.Equal(t, "/home/u/plasa/facts.json", resolveFacts("", config))
	assert.Equal(t, "other.json", resolveFacts("other.json", config))

	config.FactsFile = "/srv/plasa/facts.json"
	assert.Equal(t, "/srv/plasa/facts.json", resolveFacts("", config))
}

func TestPlasaIDComesFromRegistry(t *testing.T) {
	c := newConductor(t)
	assert.Equal(t, plasa.Address("0xplasa"), c.Registry())
}
