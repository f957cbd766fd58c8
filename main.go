package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/suryanshishere/real-time-interaction-module/auth"
	"github.com/suryanshishere/real-time-interaction-module/configure"
	"github.com/suryanshishere/real-time-interaction-module/mongo"
	"github.com/suryanshishere/real-time-interaction-module/polls"
	"github.com/suryanshishere/real-time-interaction-module/redis"
	"github.com/suryanshishere/real-time-interaction-module/rooms"
	"github.com/suryanshishere/real-time-interaction-module/server"
	"github.com/suryanshishere/real-time-interaction-module/utils"
)

func main() {
	log.Infoln("Application Starting...")

	configCode := configure.Config.GetInt("exit_code")
	if configCode > 125 || configCode < 0 {
		log.Warnf("Invalid exit code specified in config (%v), using 0 as new exit code.", configCode)
		configCode = 0
	}

	if configure.Config.GetString("redis_uri") != "" {
		if err := redis.Setup(); err != nil {
			log.Fatalf("redis, err=%v", err)
		}
	}

	var store polls.Store
	if configure.Config.GetString("mongo_uri") != "" {
		if err := mongo.Setup(); err != nil {
			log.Fatalf("mongo, err=%v", err)
		}
		store = polls.NewMongoStore()
	} else {
		log.Warnln("No mongo_uri configured, polls are held in process memory.")
		store = polls.NewMemoryStore()
	}

	anonymous := configure.Config.GetBool("anonymous")

	var resolve auth.Resolver
	if secret := configure.Config.GetString("jwt_secret"); secret != "" {
		resolve = auth.NewResolver(utils.S2B(secret))
	} else if !anonymous {
		log.Warnln("No jwt_secret configured, authenticated requests will be rejected.")
	}

	registry := rooms.NewRegistry()

	pipeline := &polls.Pipeline{
		Store:     store,
		Rooms:     registry,
		Resolve:   resolve,
		Anonymous: anonymous,
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s := server.NewServer(server.Options{
		Store:     store,
		Rooms:     registry,
		Pipeline:  pipeline,
		Resolve:   resolve,
		Anonymous: anonymous,
	})

	go func() {
		sig := <-c
		log.Infof("sig=%v, gracefully shutting down...", sig)
		start := time.Now().UnixNano()

		wg := sync.WaitGroup{}
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := s.Shutdown(); err != nil {
				log.Errorf("server, shutdown=%v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if err := registry.Close(); err != nil {
				log.Errorf("rooms, shutdown=%v", err)
			}
		}()

		wg.Wait()

		log.Infof("Shutdown took, %.2fms", float64(time.Now().UnixNano()-start)/10e5)
		os.Exit(configCode)
	}()

	log.Infoln("Application Started.")

	select {}
}
