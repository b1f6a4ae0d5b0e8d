package oracle

import (
	"os"
	"testing"

	"github.com/agentoracle/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
