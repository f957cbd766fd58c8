package server

import (
	"net"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/suryanshishere/real-time-interaction-module/auth"
	"github.com/suryanshishere/real-time-interaction-module/configure"
	"github.com/suryanshishere/real-time-interaction-module/polls"
	"github.com/suryanshishere/real-time-interaction-module/rooms"
	"github.com/suryanshishere/real-time-interaction-module/utils"

	log "github.com/sirupsen/logrus"
)

// Options carries the injected collaborators. The registry and store are
// explicit instances, never package globals, so tests can run several
// independent servers in parallel.
type Options struct {
	Store    polls.Store
	Rooms    *rooms.Registry
	Pipeline *polls.Pipeline
	Resolve  auth.Resolver

	// Anonymous allows poll creation and voting without a resolved
	// identity.
	Anonymous bool
}

type Server struct {
	app *fiber.App
	ln  net.Listener
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func NewServer(opts Options) *Server {
	ln, err := net.Listen(configure.Config.GetString("listener_network"), configure.Config.GetString("listener_address"))
	checkErr(err)

	server := &Server{
		ln: ln,
		app: fiber.New(fiber.Config{
			ErrorHandler: errorHandler,
		}),
	}

	server.app.Use(recover.New())
	server.app.Use(cors.New())
	server.app.Use(logger.New(logger.Config{
		Output: &customLogger{},
	}))

	Register(server.app, opts)

	server.app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(&fiber.Map{
			"status":  404,
			"message": "We don't know what you're looking for.",
		})
	})

	go func() {
		err = server.app.Listener(server.ln)
		if err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server
}

// Register mounts the REST routes and the live websocket endpoint on any
// router. Split out of NewServer so tests can mount onto a bare fiber app.
func Register(app fiber.Router, opts Options) {
	rest(app, opts)
	live(app, opts)
}

func errorHandler(c *fiber.Ctx, err error) error {
	log.Errorf("internal err=%v", spew.Sdump(err))

	return c.SendStatus(500)
}

func (s *Server) Shutdown() error {
	return s.ln.Close()
}
