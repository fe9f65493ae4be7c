package edgecas

import (
	"github.com/agenthands/edgecas/pkg/background"
	"github.com/agenthands/edgecas/pkg/edge"
	"github.com/agenthands/edgecas/pkg/kv"
	"go.uber.org/zap"
)

// NewStoreForTest assembles a store around injected collaborators. The
// caller owns backend and cache; Close releases both.
func NewStoreForTest(cfg Config, backend kv.Backend, cache edge.Cache, tasks background.Scheduler) (Store, error) {
	s, err := newStore(cfg, backend, cache, tasks, zap.NewNop(), newMetrics(nil))
	if err != nil {
		return nil, err
	}
	s.closers = []func() error{cache.Close, backend.Close}
	return s, nil
}

var BuildResponse = buildResponse
