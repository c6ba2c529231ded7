package utils

import (
	"io"

	"github.com/MrSnakeDoc/untold/internal/logger"
)

// CloseLogged closes c and logs a failure under name. Meant for shutdown
// paths where there is nothing left to do with the error.
func CloseLogged(c io.Closer, name string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("component", name), logger.Error(err))
	}
}
