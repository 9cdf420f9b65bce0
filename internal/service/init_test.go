package service

import (
	"procureflow.io/procureflow/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}
