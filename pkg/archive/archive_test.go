package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenthands/edgecas/internal/testkit"
	"github.com/agenthands/edgecas/pkg/core"
	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/agenthands/edgecas/pkg/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, cfg edgecas.Config) edgecas.Store {
	t.Helper()
	cfg.Background.Inline = true
	s, err := edgecas.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openStore(t, edgecas.Config{})
	rng := testkit.RNG(11)

	want := map[edgecas.Identifier][]byte{}
	for i := 0; i < 20; i++ {
		id, err := src.Ingest(ctx, testkit.ShuffledJSON(rng, testkit.RandomDocument(rng)))
		require.NoError(t, err)
		resp, err := src.Retrieve(ctx, string(id))
		require.NoError(t, err)
		want[id] = resp.Body
	}

	path := filepath.Join(t.TempDir(), "objects.car")
	a := New(nil)
	stats, err := a.Export(ctx, src, path)
	require.NoError(t, err)
	assert.Equal(t, len(want), stats.Objects)

	dst := openStore(t, edgecas.Config{Store: edgecas.StoreConfig{Dir: t.TempDir()}})
	istats, err := a.Import(ctx, path, dst)
	require.NoError(t, err)
	assert.Equal(t, stats, istats)

	for id, body := range want {
		resp, err := dst.Retrieve(ctx, string(id))
		require.NoError(t, err)
		assert.Equal(t, body, resp.Body)
	}

	t.Run("ImportIsIdempotent", func(t *testing.T) {
		_, err := a.Import(ctx, path, dst)
		assert.NoError(t, err)
	})

	t.Run("RefusesToOverwrite", func(t *testing.T) {
		_, err := a.Export(ctx, src, path)
		assert.Error(t, err)
	})
}

func TestExportRandomTokenStore(t *testing.T) {
	ctx := context.Background()
	src := openStore(t, edgecas.Config{Policy: ident.PolicyRandomToken})
	doc := testkit.ScenarioDocument("token")

	a1, err := src.Ingest(ctx, doc)
	require.NoError(t, err)
	a2, err := src.Ingest(ctx, doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tokens.car")
	stats, err := New(nil).Export(ctx, src, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Objects)

	dst := openStore(t, edgecas.Config{Policy: ident.PolicyRandomToken})
	_, err = New(nil).Import(ctx, path, dst)
	require.NoError(t, err)
	for _, id := range []edgecas.Identifier{a1, a2} {
		_, err := dst.Retrieve(ctx, string(id))
		assert.NoError(t, err)
	}
}

func TestImportDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	src := openStore(t, edgecas.Config{})
	doc := testkit.ScenarioDocument("tamper with me")
	_, err := src.Ingest(ctx, doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "one.car")
	_, err = New(nil).Export(ctx, src, path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, testkit.CorruptBody(raw, doc), 0o644))

	dst := openStore(t, edgecas.Config{})
	_, err = New(nil).Import(ctx, path, dst)
	assert.ErrorIs(t, err, core.ErrCorrupt)
}

func TestImportMissingFile(t *testing.T) {
	_, err := New(nil).Import(context.Background(), filepath.Join(t.TempDir(), "absent.car"), openStore(t, edgecas.Config{}))
	assert.Error(t, err)
}
