// internal/backend/cache_test.go
package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docucontrol/tramites-portal/internal/models"
)

type countingSource struct {
	calls int
	fail  bool
}

func (s *countingSource) GetProcedure(_ context.Context, id string) models.Result[*models.ProcedureDefinition] {
	s.calls++
	if s.fail {
		return models.Fail[*models.ProcedureDefinition](MsgGetProcedureFailed)
	}
	return models.Ok(&models.ProcedureDefinition{ID: id})
}

func TestCachedCatalog(t *testing.T) {
	source := &countingSource{}
	catalog := NewCachedCatalog(source, 10, time.Minute)

	first := catalog.GetProcedure(context.Background(), "7")
	second := catalog.GetProcedure(context.Background(), "7")
	assert.True(t, second.Success)
	assert.Same(t, first.Data, second.Data)
	assert.Equal(t, 1, source.calls)

	catalog.Invalidate("7")
	catalog.GetProcedure(context.Background(), "7")
	assert.Equal(t, 2, source.calls)
}

func TestCachedCatalogSkipsFailures(t *testing.T) {
	source := &countingSource{fail: true}
	catalog := NewCachedCatalog(source, 10, time.Minute)

	assert.False(t, catalog.GetProcedure(context.Background(), "7").Success)
	assert.False(t, catalog.GetProcedure(context.Background(), "7").Success)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 0, catalog.Len())

	source.fail = false
	assert.True(t, catalog.GetProcedure(context.Background(), "7").Success)
	assert.Equal(t, 1, catalog.Len())
}

func TestCachedCatalogExpires(t *testing.T) {
	source := &countingSource{}
	catalog := NewCachedCatalog(source, 10, 20*time.Millisecond)

	catalog.GetProcedure(context.Background(), "7")
	time.Sleep(50 * time.Millisecond)
	catalog.GetProcedure(context.Background(), "7")
	assert.Equal(t, 2, source.calls)
}
