package memory_test

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/ceplayer/internal/repository"
	"github.com/vytor/ceplayer/internal/repository/memory"
	"github.com/vytor/ceplayer/internal/repository/repotest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &repotest.StoreSuite{
		NewStore: func(*testing.T) repository.Store { return memory.NewStore() },
	})
}
