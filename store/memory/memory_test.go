package memory

import (
	"testing"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) mgnrega.Store { return New() })
}
