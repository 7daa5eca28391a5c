package app

// pkg/app/server.go — bridges Application → internal/server. The only
// job of this file is to build the HTTP bridge handler (via kernel.go)
// and pass it to the internal server that actually binds the port.

import (
	"github.com/setulabs/setu/internal/server"
	"github.com/setulabs/setu/pkg/logger"
)

// startServer boots the application, launches the background workers,
// serves, and winds everything down once the server has drained.
func startServer(a *Application) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	a.StartBackground()

	serveErr := server.Start(handler)
	if err := a.Close(); err != nil {
		logger.Warn("closing application", "err", err)
	}
	return serveErr
}
