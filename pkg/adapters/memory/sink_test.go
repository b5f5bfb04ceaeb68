package memory_test

import (
	"testing"

	"github.com/docweave/docweave/pkg/adapters/memory"
	"github.com/docweave/docweave/pkg/ports"
)

func TestMemorySink_Contract(t *testing.T) {
	ports.RunResultSinkContract(t, memory.NewSink())
}
